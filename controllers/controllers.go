package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lettergame/loveletter-backend/services"
)

// Handlers bundles the HTTP layer's dependencies. Services are injected at
// construction; no handler reaches for a global.
type Handlers struct {
	Rooms     *services.RoomManager
	Resolver  *services.Resolver
	Projector *services.Projector
	Bots      *services.BotDriver
}

func New(rooms *services.RoomManager, resolver *services.Resolver, projector *services.Projector, bots *services.BotDriver) *Handlers {
	return &Handlers{Rooms: rooms, Resolver: resolver, Projector: projector, Bots: bots}
}

// statusFor maps a domain rejection to an HTTP status. Domain rejections are
// final; system errors come back as 500 and are the ones worth retrying.
func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.ErrRoomNotFound, services.ErrGameNotFound:
		return http.StatusNotFound
	case services.ErrUnauthorized:
		return http.StatusUnauthorized
	case services.ErrNotHost:
		return http.StatusForbidden
	case services.ErrRoomFull, services.ErrRoomNotJoinable, services.ErrInvalidPhase, services.ErrNotYourTurn, services.ErrForcedCardConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// fail writes a structured error response, distinguishing domain rejections
// from system failures.
func fail(c *gin.Context, err error) {
	var derr *services.DomainError
	if errors.As(err, &derr) {
		c.JSON(statusFor(derr.Kind), gin.H{"error": string(derr.Kind), "message": derr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "please retry"})
}

// bearerToken pulls the opaque credential from the Authorization header.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
