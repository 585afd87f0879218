package models

import "time"

type ActionType string

const (
	ActionPlayCard ActionType = "play_card"
	ActionGuess    ActionType = "guess"
	ActionPeek     ActionType = "peek"
	ActionCompare  ActionType = "compare"
	ActionResign   ActionType = "resign"
)

// Action is the append-only audit log. Insertion order is the authoritative
// event order for a game; the newest row doubles as the idempotency anchor
// for duplicate-submission detection, and play_card rows are the source the
// projector rebuilds per-player discard history from.
type Action struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	GameID      string     `gorm:"index;size:36;not null" json:"game_id"`
	ActorID     string     `gorm:"size:36;not null" json:"actor_id"`
	Type        ActionType `gorm:"size:16;not null" json:"type"`
	CardID      string     `gorm:"size:32" json:"card_id,omitempty"`
	TargetID    string     `gorm:"size:36" json:"target_id,omitempty"`
	GuessedRank int        `json:"guessed_rank,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
