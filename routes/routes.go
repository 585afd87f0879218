package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/lettergame/loveletter-backend/controllers"
)

func SetupRoutes(r *gin.Engine, h *controllers.Handlers) {
	api := r.Group("/api")

	// ----------------------
	// Room lifecycle
	// ----------------------
	api.POST("/rooms", h.CreateRoom)          // Open a waiting room
	api.POST("/rooms/solo", h.CreateSoloRoom) // Host + 3 bots, starts at once
	api.POST("/rooms/join", h.JoinRoom)       // Join by room code
	api.POST("/rooms/:id/start", h.StartGame) // Host starts the round

	// ----------------------
	// Gameplay
	// ----------------------
	api.POST("/rooms/:id/games/:gameId/actions", h.SubmitAction)

	// ----------------------
	// State polling
	// ----------------------
	api.GET("/rooms/:id/state", h.GetState)
}
