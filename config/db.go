package config

import (
	"fmt"
	"log"

	"github.com/lettergame/loveletter-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SetupDatabase connects to Postgres and migrates the schema. The returned
// handle is passed explicitly into every service; there is no package-level DB.
func SetupDatabase(cfg *Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("[FATAL] Migration failed: %v", err)
	}

	fmt.Println("✅ Database connected and migrated")
	return db
}

// Migrate runs AutoMigrate for every model. Split out so tests can run it
// against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Room{},
		&models.Player{},
		&models.Game{},
		&models.Hand{},
		&models.Action{},
		&models.LogEntry{},
	)
}
