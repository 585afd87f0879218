package models

import "time"

type PlayerRole string

const (
	RolePlayer   PlayerRole = "player"
	RoleObserver PlayerRole = "observer"
)

// Player is one seat in a room. Seat index is the turn order and is unique
// per room. Token is the opaque bearer credential issued at join time; it is
// never included in any projection sent to other viewers.
type Player struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	RoomID       string     `gorm:"index;size:36;not null" json:"room_id"`
	Nickname     string     `gorm:"size:32;not null" json:"nickname"`
	Seat         int        `gorm:"not null" json:"seat"`
	Role         PlayerRole `gorm:"size:16;not null;default:'player'" json:"role"`
	IsBot        bool       `gorm:"not null;default:false" json:"is_bot"`
	IsEliminated bool       `gorm:"not null;default:false" json:"is_eliminated"`
	Shield       bool       `gorm:"not null;default:false" json:"shield"`
	Token        string     `gorm:"size:36" json:"-"`
	LastActiveAt time.Time  `json:"last_active_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
