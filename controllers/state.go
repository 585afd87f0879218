package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetState returns the per-viewer room snapshot. Pollers send the last etag
// they saw via If-None-Match and get a 304 when nothing visible changed.
func (h *Handlers) GetState(c *gin.Context) {
	roomID := c.Param("id")
	viewerID := c.Query("viewer")

	// Private fields require the viewer's own credential; without one the
	// caller gets the public projection.
	if viewerID != "" {
		if err := h.Rooms.Authenticate(roomID, viewerID, bearerToken(c)); err != nil {
			fail(c, err)
			return
		}
	}

	state, etag, lastUpdated, err := h.Projector.GetState(roomID, viewerID)
	if err != nil {
		fail(c, err)
		return
	}

	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Header("ETag", etag)
	c.Header("Last-Modified", lastUpdated.UTC().Format(http.TimeFormat))
	c.JSON(http.StatusOK, gin.H{"state": state, "etag": etag})
}
