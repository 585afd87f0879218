package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lettergame/loveletter-backend/config"
	"github.com/lettergame/loveletter-backend/controllers"
	"github.com/lettergame/loveletter-backend/routes"
	"github.com/lettergame/loveletter-backend/services"
	"github.com/lettergame/loveletter-backend/utils/logger"
)

func main() {
	cfg := config.Load()
	db := config.SetupDatabase(cfg)

	// Wire services: one store handle, one advisory bus, everything injected.
	bus := services.NewBus()
	resolver := services.NewResolver(db, bus, cfg.ShuffleSeed)
	projector := services.NewProjector(db)
	bots := services.NewBotDriver(db, resolver)
	rooms := services.NewRoomManager(db, resolver, bus)
	streamer := services.NewStreamer(projector, bus, rooms)
	handlers := controllers.New(rooms, resolver, projector, bots)

	stop := make(chan struct{})
	defer close(stop)
	go rooms.RunCleanupLoop(5*time.Minute, stop)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag", "Last-Modified"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, handlers)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	// WebSocket state stream
	r.GET("/ws/rooms/:id", streamer.Handle)

	defer logger.Sync()
	log.Printf("🚀 Card game server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
