package models

import (
	"time"

	"gorm.io/datatypes"
)

type GamePhase string

const (
	PhaseWaiting    GamePhase = "waiting"
	PhaseSetup      GamePhase = "setup"
	PhaseDraw       GamePhase = "draw"
	PhaseChooseCard GamePhase = "choose_card"
	// PhaseAwaitResponse is reserved for multi-step effects that need a reply
	// from a second player. No current card effect enters it.
	PhaseAwaitResponse GamePhase = "await_response"
	PhaseRoundEnd      GamePhase = "round_end"
	PhaseFinished      GamePhase = "finished"
)

type EndReason string

const (
	EndElimination   EndReason = "elimination"
	EndDeckExhausted EndReason = "deck_exhausted"
	EndResign        EndReason = "resign"
)

// Game is one round of play. A room has at most one game alive at a time; a
// new round gets a fresh row rather than resetting this one.
type Game struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID    string    `gorm:"index;size:36;not null" json:"room_id"`
	Phase     GamePhase `gorm:"size:16;not null" json:"phase"`
	TurnIndex int       `gorm:"not null" json:"turn_index"`
	Round     int       `gorm:"not null;default:1" json:"round"`

	DrawPile      datatypes.JSON `gorm:"type:json" json:"-"` // ordered card ids, index 0 drawn next
	BurnCard      string         `gorm:"size:32" json:"-"`
	DiscardPile   datatypes.JSON `gorm:"type:json" json:"-"` // append-only, chronological
	RevealedSetup datatypes.JSON `gorm:"type:json" json:"-"` // 2-player variant: 3 face-up cards

	ActivePlayerID   string `gorm:"size:36" json:"active_player_id"`
	AwaitingPlayerID string `gorm:"size:36" json:"awaiting_player_id,omitempty"`

	ResultWinners datatypes.JSON `gorm:"type:json" json:"-"` // []playerID, set at round end
	ResultReason  EndReason      `gorm:"size:16" json:"result_reason,omitempty"`
	FinalHands    datatypes.JSON `gorm:"type:json" json:"-"` // playerID -> []cardID, deck-exhaustion reveal

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Hands   []Hand     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Actions []Action   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Logs    []LogEntry `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
