package services

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lettergame/loveletter-backend/game"
	"github.com/lettergame/loveletter-backend/models"
)

// LogCap bounds how many narration lines a projection carries.
const LogCap = 50

// Projector maps persisted state into per-viewer snapshots. Everything it
// returns is recomputed from the store on each call; nothing is cached, so a
// wake-up from the bus can always be answered with authoritative state.
type Projector struct {
	db *gorm.DB
}

func NewProjector(db *gorm.DB) *Projector {
	return &Projector{db: db}
}

// PlayerView is the public face of one seat.
type PlayerView struct {
	ID           string   `json:"id"`
	Nickname     string   `json:"nickname"`
	Seat         int      `json:"seat"`
	IsBot        bool     `json:"is_bot"`
	IsEliminated bool     `json:"is_eliminated"`
	Shield       bool     `json:"shield"`
	HandSize     int      `json:"hand_size"`
	Discards     []string `json:"discards"` // played cards, chronological
}

// PeekHint is the ephemeral reveal from the viewer's own peek. It is rebuilt
// fresh on every projection and only ever attached for the peeking player.
type PeekHint struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	CardID     string `json:"card_id"`
	CardName   string `json:"card_name"`
	Rank       int    `json:"rank"`
}

type ResultView struct {
	WinnerIDs  []string            `json:"winner_ids"`
	Reason     models.EndReason    `json:"reason"`
	FinalHands map[string][]string `json:"final_hands,omitempty"`
}

type LogView struct {
	Message   string    `json:"message"`
	ActorID   string    `json:"actor_id,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientState is the full snapshot one viewer may see. Pile contents other
// than the discard pile are never included, only counts.
type ClientState struct {
	RoomID   string            `json:"room_id"`
	RoomCode string            `json:"room_code"`
	Status   models.RoomStatus `json:"status"`

	GameID         string           `json:"game_id,omitempty"`
	Phase          models.GamePhase `json:"phase,omitempty"`
	TurnIndex      int              `json:"turn_index"`
	Round          int              `json:"round"`
	ActivePlayerID string           `json:"active_player_id,omitempty"`
	DrawPileCount  int              `json:"draw_pile_count"`
	DiscardPile    []string         `json:"discard_pile"`
	RevealedSetup  []string         `json:"revealed_setup,omitempty"`

	Players []PlayerView `json:"players"`
	Logs    []LogView    `json:"logs"`
	Result  *ResultView  `json:"result,omitempty"`

	// Viewer-private fields.
	YourHand []string  `json:"your_hand,omitempty"`
	Peek     *PeekHint `json:"peek,omitempty"`
}

// GetState projects the room for one viewer (empty viewerID = pure observer)
// and returns the snapshot, its change-fingerprint, and the last-modified
// time. Identical state yields an identical etag, so pollers can
// short-circuit with "not modified".
func (pr *Projector) GetState(roomID, viewerID string) (*ClientState, string, time.Time, error) {
	var room models.Room
	if err := pr.db.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", time.Time{}, reject(ErrRoomNotFound, "room %s not found", roomID)
		}
		return nil, "", time.Time{}, err
	}

	var players []*models.Player
	if err := pr.db.Where("room_id = ?", roomID).Order("seat asc").Find(&players).Error; err != nil {
		return nil, "", time.Time{}, err
	}

	state := &ClientState{
		RoomID:      room.ID,
		RoomCode:    room.Code,
		Status:      room.Status,
		DiscardPile: []string{},
		Logs:        []LogView{},
	}

	var g models.Game
	hasGame := true
	if err := pr.db.Where("room_id = ?", roomID).Order("created_at desc").First(&g).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", time.Time{}, err
		}
		hasGame = false
	}

	var actions []models.Action
	var logs []models.LogEntry
	if hasGame {
		state.GameID = g.ID
		state.Phase = g.Phase
		state.TurnIndex = g.TurnIndex
		state.Round = g.Round
		state.ActivePlayerID = g.ActivePlayerID
		state.DrawPileCount = len(models.JSONCards(g.DrawPile))
		state.DiscardPile = models.JSONCards(g.DiscardPile)
		state.RevealedSetup = models.JSONCards(g.RevealedSetup)

		if err := pr.db.Where("game_id = ?", g.ID).Order("id asc").Find(&actions).Error; err != nil {
			return nil, "", time.Time{}, err
		}
		if err := pr.db.Where("game_id = ?", g.ID).Order("id desc").Limit(LogCap).Find(&logs).Error; err != nil {
			return nil, "", time.Time{}, err
		}

		if g.Phase == models.PhaseRoundEnd {
			state.Result = &ResultView{
				WinnerIDs: models.JSONCards(g.ResultWinners),
				Reason:    g.ResultReason,
			}
			if len(g.FinalHands) > 0 {
				state.Result.FinalHands = models.JSONHandsMap(g.FinalHands)
			}
		}
	}

	discardsByPlayer := map[string][]string{}
	for _, a := range actions {
		if a.CardID != "" && a.Type != models.ActionResign {
			discardsByPlayer[a.ActorID] = append(discardsByPlayer[a.ActorID], a.CardID)
		}
	}

	hands := map[string][]string{}
	if hasGame {
		var handRows []models.Hand
		if err := pr.db.Where("game_id = ?", g.ID).Find(&handRows).Error; err != nil {
			return nil, "", time.Time{}, err
		}
		for _, h := range handRows {
			hands[h.PlayerID] = models.JSONCards(h.Cards)
		}
	}

	viewerSeated := false
	for _, p := range players {
		if p.ID == viewerID {
			viewerSeated = true
		}
		pv := PlayerView{
			ID:           p.ID,
			Nickname:     p.Nickname,
			Seat:         p.Seat,
			IsBot:        p.IsBot,
			IsEliminated: p.IsEliminated,
			Shield:       p.Shield,
			HandSize:     len(hands[p.ID]),
			Discards:     discardsByPlayer[p.ID],
		}
		if pv.Discards == nil {
			pv.Discards = []string{}
		}
		state.Players = append(state.Players, pv)
	}

	// Oldest-first for display; the query fetched newest-first to cap.
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		state.Logs = append(state.Logs, LogView{
			Message: l.Message, ActorID: l.ActorID, Icon: l.Icon, CreatedAt: l.CreatedAt,
		})
	}

	if viewerSeated && hasGame {
		state.YourHand = hands[viewerID]
		state.Peek = peekHint(actions, hands, players, viewerID)
	}

	lastUpdated := room.UpdatedAt
	var lastLog time.Time
	if len(logs) > 0 {
		lastLog = logs[0].CreatedAt // newest, pre-reversal order
		if lastLog.After(lastUpdated) {
			lastUpdated = lastLog
		}
	}

	etag := fingerprint(room.UpdatedAt, lastLog, state.Phase, state.TurnIndex, state.Round, len(players), viewerID)
	return state, etag, lastUpdated, nil
}

// peekHint surfaces the viewer's last peek, if it is still their most recent
// action, by reading the target's current hand. Nothing is persisted for it.
func peekHint(actions []models.Action, hands map[string][]string, players []*models.Player, viewerID string) *PeekHint {
	var last *models.Action
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].ActorID == viewerID {
			last = &actions[i]
			break
		}
	}
	if last == nil || last.Type != models.ActionPeek || last.TargetID == "" {
		return nil
	}
	target := hands[last.TargetID]
	if len(target) == 0 {
		return nil
	}
	c := game.MustLookup(target[0])
	hint := &PeekHint{TargetID: last.TargetID, CardID: c.ID, CardName: c.Name, Rank: c.Rank}
	for _, p := range players {
		if p.ID == last.TargetID {
			hint.TargetName = p.Nickname
		}
	}
	return hint
}

// fingerprint derives the etag. Deterministic over the fields that change
// whenever viewer-visible state changes.
func fingerprint(updatedAt, lastLog time.Time, phase models.GamePhase, turn, round, playerCount int, viewerID string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%s|%d|%d|%d|%s",
		updatedAt.UnixNano(), lastLog.UnixNano(), phase, turn, round, playerCount, viewerID)))
	return hex.EncodeToString(h[:])
}
