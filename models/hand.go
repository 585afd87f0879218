package models

import (
	"time"

	"gorm.io/datatypes"
)

// Hand holds one player's private cards for one game. Order matters: index 0
// is the position card effects index by ("discard your first card").
type Hand struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	GameID   string         `gorm:"index;size:36;not null" json:"game_id"`
	PlayerID string         `gorm:"index;size:36;not null" json:"player_id"`
	Cards    datatypes.JSON `gorm:"type:json" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
