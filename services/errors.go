package services

import "fmt"

// ErrorKind classifies a rejected request. Domain rejections are returned to
// the caller as values; they never escape a transaction as a Go error, so a
// failed guard always rolls back cleanly with no partial effect.
type ErrorKind string

const (
	ErrInvalidPhase        ErrorKind = "invalid_phase"
	ErrNotYourTurn         ErrorKind = "not_your_turn"
	ErrUnauthorized        ErrorKind = "unauthorized"
	ErrCardNotInHand       ErrorKind = "card_not_in_hand"
	ErrInvalidTarget       ErrorKind = "invalid_target"
	ErrInvalidGuess        ErrorKind = "invalid_guess"
	ErrForcedCardConflict  ErrorKind = "forced_card_conflict"
	ErrRoomNotFound        ErrorKind = "room_not_found"
	ErrGameNotFound        ErrorKind = "game_not_found"
	ErrRoomFull            ErrorKind = "room_full"
	ErrRoomNotJoinable     ErrorKind = "room_not_joinable"
	ErrInsufficientPlayers ErrorKind = "insufficient_players"
	ErrNotHost             ErrorKind = "not_host"
)

// DomainError is a structured rejection: the action was judged on its merits
// and refused. The caller should not retry it as-is. System failures (store
// down, transaction conflict) travel as ordinary errors instead and are
// retryable.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func reject(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
