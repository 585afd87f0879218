package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Nickname      string   `json:"nickname" binding:"required"`
	Substitutions []string `json:"substitutions"`
}

// CreateRoom opens a waiting room with the caller as host.
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Rooms.CreateHumanRoom(req.Nickname)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// CreateSoloRoom seats the caller with three bots and starts immediately.
func (h *Handlers) CreateSoloRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Rooms.CreateRoomWithBots(req.Nickname, req.Substitutions)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type joinRoomRequest struct {
	Code     string `json:"code" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
}

// JoinRoom seats a newcomer by room code.
func (h *Handlers) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Rooms.JoinRoom(req.Code, req.Nickname)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type startGameRequest struct {
	PlayerID      string   `json:"player_id" binding:"required"`
	Substitutions []string `json:"substitutions"`
}

// StartGame runs round setup; host only.
func (h *Handlers) StartGame(c *gin.Context) {
	roomID := c.Param("id")
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Rooms.Authenticate(roomID, req.PlayerID, bearerToken(c)); err != nil {
		fail(c, err)
		return
	}
	gameID, err := h.Rooms.StartGame(roomID, req.PlayerID, req.Substitutions)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_id": gameID})
}
