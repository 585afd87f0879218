package models

import "time"

// LogEntry is one human-readable narration line shown to every viewer.
// Append-only; projections cap to the most recent entries.
type LogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GameID    string    `gorm:"index;size:36;not null" json:"game_id"`
	ActorID   string    `gorm:"size:36" json:"actor_id,omitempty"`
	Message   string    `gorm:"size:256;not null" json:"message"`
	Icon      string    `gorm:"size:16" json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
