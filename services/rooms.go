package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lettergame/loveletter-backend/models"
	"github.com/lettergame/loveletter-backend/utils/logger"
)

const (
	// MaxSeats is the table capacity.
	MaxSeats = 4

	// Default TTLs for stale-room cleanup. Rooms nobody ever started go
	// quickly; rooms with a game get a longer grace period.
	WaitingRoomTTL = 15 * time.Minute
	PlayedRoomTTL  = 60 * time.Minute
)

// codeAlphabet avoids 0/O, 1/I and other lookalikes so codes survive being
// read out loud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var botNames = []string{"Bot Ada", "Bot Blaise", "Bot Curie"}

// RoomManager creates, fills, starts and garbage-collects rooms.
type RoomManager struct {
	db       *gorm.DB
	resolver *Resolver
	bus      *Bus
	log      *zap.SugaredLogger
}

func NewRoomManager(db *gorm.DB, resolver *Resolver, bus *Bus) *RoomManager {
	return &RoomManager{db: db, resolver: resolver, bus: bus, log: logger.Named("rooms")}
}

// CreatedRoom is what a room creator gets back. Token is the opaque bearer
// credential for the host seat.
type CreatedRoom struct {
	RoomID   string   `json:"room_id"`
	Code     string   `json:"code"`
	PlayerID string   `json:"player_id"`
	Token    string   `json:"token"`
	Seat     int      `json:"seat"`
	BotIDs   []string `json:"bot_ids,omitempty"`
	GameID   string   `json:"game_id,omitempty"`
}

// CreateHumanRoom opens a waiting room with just the host seated.
func (m *RoomManager) CreateHumanRoom(nickname string) (*CreatedRoom, error) {
	var out *CreatedRoom
	err := m.db.Transaction(func(tx *gorm.DB) error {
		room, err := m.newRoom(tx)
		if err != nil {
			return err
		}
		host := newPlayer(room.ID, nickname, 0, false)
		if err := tx.Create(host).Error; err != nil {
			return err
		}
		out = &CreatedRoom{
			RoomID: room.ID, Code: room.Code,
			PlayerID: host.ID, Token: host.Token, Seat: 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Infow("room created", "room", out.RoomID, "code", out.Code)
	return out, nil
}

// CreateRoomWithBots seats the host with three bots and starts the round
// immediately. substitutions selects variant cards for the deck build.
func (m *RoomManager) CreateRoomWithBots(nickname string, substitutions []string) (*CreatedRoom, error) {
	var out *CreatedRoom
	err := m.db.Transaction(func(tx *gorm.DB) error {
		room, err := m.newRoom(tx)
		if err != nil {
			return err
		}
		host := newPlayer(room.ID, nickname, 0, false)
		if err := tx.Create(host).Error; err != nil {
			return err
		}
		players := []*models.Player{host}
		var botIDs []string
		for i, name := range botNames {
			bot := newPlayer(room.ID, name, i+1, true)
			if err := tx.Create(bot).Error; err != nil {
				return err
			}
			players = append(players, bot)
			botIDs = append(botIDs, bot.ID)
		}

		room.Status = models.RoomActive
		g, err := m.resolver.StartRound(tx, room, players, substitutions)
		if err != nil {
			return err
		}

		out = &CreatedRoom{
			RoomID: room.ID, Code: room.Code,
			PlayerID: host.ID, Token: host.Token, Seat: 0,
			BotIDs: botIDs, GameID: g.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.bus.Publish(out.RoomID)
	m.log.Infow("bot room created", "room", out.RoomID, "game", out.GameID)
	return out, nil
}

// JoinRoom seats a newcomer in the lowest free seat of a waiting room.
func (m *RoomManager) JoinRoom(code, nickname string) (*CreatedRoom, error) {
	var out *CreatedRoom
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, "code = ?", code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return reject(ErrRoomNotFound, "no room with code %s", code)
			}
			return err
		}
		if room.Status != models.RoomWaiting {
			return reject(ErrRoomNotJoinable, "room %s has already started", code)
		}

		var players []*models.Player
		if err := tx.Where("room_id = ?", room.ID).Order("seat asc").Find(&players).Error; err != nil {
			return err
		}
		if len(players) >= MaxSeats {
			return reject(ErrRoomFull, "room %s is full", code)
		}

		taken := map[int]bool{}
		for _, p := range players {
			taken[p.Seat] = true
		}
		seat := 0
		for taken[seat] {
			seat++
		}

		p := newPlayer(room.ID, nickname, seat, false)
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := tx.Save(&room).Error; err != nil { // bump updated_at
			return err
		}
		out = &CreatedRoom{RoomID: room.ID, Code: room.Code, PlayerID: p.ID, Token: p.Token, Seat: seat}
		return nil
	})
	if err != nil {
		var derr *DomainError
		if errors.As(err, &derr) {
			return nil, derr
		}
		return nil, fmt.Errorf("join room: %w", err)
	}
	m.bus.Publish(out.RoomID)
	return out, nil
}

// StartGame runs round setup for a waiting room. Only seat 0 may start, and
// only with at least 2 players seated.
func (m *RoomManager) StartGame(roomID, playerID string, substitutions []string) (string, error) {
	var gameID string
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return reject(ErrRoomNotFound, "room %s not found", roomID)
			}
			return err
		}
		if room.Status != models.RoomWaiting {
			return reject(ErrRoomNotJoinable, "the game has already started")
		}

		var players []*models.Player
		if err := tx.Where("room_id = ?", room.ID).Order("seat asc").Find(&players).Error; err != nil {
			return err
		}
		var host *models.Player
		for _, p := range players {
			if p.ID == playerID {
				host = p
			}
		}
		if host == nil {
			return reject(ErrUnauthorized, "player %s is not seated in this room", playerID)
		}
		if host.Seat != 0 {
			return reject(ErrNotHost, "only the host can start the game")
		}
		if len(players) < 2 {
			return reject(ErrInsufficientPlayers, "at least 2 players are needed to start")
		}

		room.Status = models.RoomActive
		g, err := m.resolver.StartRound(tx, &room, players, substitutions)
		if err != nil {
			return err
		}
		gameID = g.ID
		return nil
	})
	if err != nil {
		var derr *DomainError
		if errors.As(err, &derr) {
			return "", derr
		}
		return "", fmt.Errorf("start game: %w", err)
	}
	m.bus.Publish(roomID)
	m.log.Infow("game started", "room", roomID, "game", gameID)
	return gameID, nil
}

// Authenticate checks a bearer token against a seat. The resolver itself
// trusts (roomID, playerID); this is the layer that earns that trust.
func (m *RoomManager) Authenticate(roomID, playerID, token string) error {
	var p models.Player
	if err := m.db.First(&p, "id = ? AND room_id = ?", playerID, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(ErrUnauthorized, "unknown player")
		}
		return err
	}
	if p.Token == "" || p.Token != token {
		return reject(ErrUnauthorized, "bad credentials")
	}
	return nil
}

// CleanupStale deletes rooms in the given statuses whose last update predates
// maxAge, cascading to players, games, hands, actions and logs. Returns the
// number of rooms removed.
func (m *RoomManager) CleanupStale(maxAge time.Duration, statuses ...models.RoomStatus) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var removed int

	err := m.db.Transaction(func(tx *gorm.DB) error {
		var rooms []models.Room
		if err := tx.Where("status IN ? AND updated_at < ?", statuses, cutoff).Find(&rooms).Error; err != nil {
			return err
		}
		for _, room := range rooms {
			var gameIDs []string
			if err := tx.Model(&models.Game{}).Where("room_id = ?", room.ID).Pluck("id", &gameIDs).Error; err != nil {
				return err
			}
			if len(gameIDs) > 0 {
				for _, model := range []interface{}{&models.Hand{}, &models.Action{}, &models.LogEntry{}} {
					if err := tx.Where("game_id IN ?", gameIDs).Delete(model).Error; err != nil {
						return err
					}
				}
				if err := tx.Where("room_id = ?", room.ID).Delete(&models.Game{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("room_id = ?", room.ID).Delete(&models.Player{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&room).Error; err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup stale rooms: %w", err)
	}
	if removed > 0 {
		m.log.Infow("stale rooms removed", "count", removed, "max_age", maxAge)
	}
	return removed, nil
}

// RunCleanupLoop sweeps on a ticker until stop is closed.
func (m *RoomManager) RunCleanupLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := m.CleanupStale(WaitingRoomTTL, models.RoomWaiting); err != nil {
				m.log.Errorw("cleanup failed", "err", err)
			}
			if _, err := m.CleanupStale(PlayedRoomTTL, models.RoomActive, models.RoomFinished); err != nil {
				m.log.Errorw("cleanup failed", "err", err)
			}
		}
	}
}

// ------------------------------- helpers -----------------------------------

func (m *RoomManager) newRoom(tx *gorm.DB) (*models.Room, error) {
	for attempt := 0; attempt < 5; attempt++ {
		room := &models.Room{
			ID:     uuid.NewString(),
			Code:   generateCode(),
			Status: models.RoomWaiting,
		}
		err := tx.Create(room).Error
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// Code collision; roll a new one.
	}
	return nil, errors.New("could not allocate a unique room code")
}

func newPlayer(roomID, nickname string, seat int, isBot bool) *models.Player {
	token := ""
	if !isBot {
		token = uuid.NewString()
	}
	return &models.Player{
		ID:           uuid.NewString(),
		RoomID:       roomID,
		Nickname:     nickname,
		Seat:         seat,
		Role:         models.RolePlayer,
		IsBot:        isBot,
		Token:        token,
		LastActiveAt: time.Now(),
	}
}

func generateCode() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
