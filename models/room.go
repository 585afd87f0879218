package models

import "time"

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomActive   RoomStatus = "active"
	RoomFinished RoomStatus = "finished"
)

// Room is one table of up to 4 seats. A room owns its players and games;
// deleting a room cascades to everything underneath it.
type Room struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Code      string     `gorm:"uniqueIndex;size:6;not null" json:"code"`
	Status    RoomStatus `gorm:"size:16;not null;default:'waiting'" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Players []Player `gorm:"constraint:OnDelete:CASCADE" json:"players,omitempty"`
	Games   []Game   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
