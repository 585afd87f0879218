package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lettergame/loveletter-backend/config"
	"github.com/lettergame/loveletter-backend/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	return newTestDBNamed(t, t.Name())
}

func newTestDBNamed(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(name, "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fixture seeds a mid-round game with exact hands and draw pile so effect
// tests control every card position.
type fixture struct {
	t        *testing.T
	db       *gorm.DB
	resolver *Resolver
	room     *models.Room
	game     *models.Game
	players  []*models.Player
}

// newFixture creates one player per entry of hands (seat order), a running
// game in choose_card phase with seat 0 active, and the given draw pile.
func newFixture(t *testing.T, hands [][]string, draw []string) *fixture {
	t.Helper()
	db := newTestDB(t)

	room := &models.Room{ID: uuid.NewString(), Code: "TESTRM", Status: models.RoomActive}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("create room: %v", err)
	}

	f := &fixture{
		t:        t,
		db:       db,
		resolver: NewResolver(db, NewBus(), ""),
		room:     room,
	}

	for seat := range hands {
		p := &models.Player{
			ID:       uuid.NewString(),
			RoomID:   room.ID,
			Nickname: fmt.Sprintf("P%d", seat),
			Seat:     seat,
			Role:     models.RolePlayer,
		}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("create player: %v", err)
		}
		f.players = append(f.players, p)
	}

	f.game = &models.Game{
		ID:             uuid.NewString(),
		RoomID:         room.ID,
		Phase:          models.PhaseChooseCard,
		Round:          1,
		TurnIndex:      0,
		ActivePlayerID: f.players[0].ID,
		DrawPile:       models.CardsJSON(draw),
		DiscardPile:    models.CardsJSON(nil),
		RevealedSetup:  models.CardsJSON(nil),
	}
	if err := db.Create(f.game).Error; err != nil {
		t.Fatalf("create game: %v", err)
	}

	for seat, cards := range hands {
		h := &models.Hand{GameID: f.game.ID, PlayerID: f.players[seat].ID, Cards: models.CardsJSON(cards)}
		if err := db.Create(h).Error; err != nil {
			t.Fatalf("create hand: %v", err)
		}
	}
	return f
}

func (f *fixture) play(seat int, cardID, targetID string, guess int) *ActionResult {
	f.t.Helper()
	res, err := f.resolver.SubmitAction(ActionRequest{
		RoomID:      f.room.ID,
		GameID:      f.game.ID,
		PlayerID:    f.players[seat].ID,
		Type:        models.ActionPlayCard,
		CardID:      cardID,
		TargetID:    targetID,
		GuessedRank: guess,
	})
	if err != nil {
		f.t.Fatalf("submit action: %v", err)
	}
	return res
}

func (f *fixture) resign(seat int) *ActionResult {
	f.t.Helper()
	res, err := f.resolver.SubmitAction(ActionRequest{
		RoomID:   f.room.ID,
		GameID:   f.game.ID,
		PlayerID: f.players[seat].ID,
		Type:     models.ActionResign,
	})
	if err != nil {
		f.t.Fatalf("submit resign: %v", err)
	}
	return res
}

func (f *fixture) reloadGame() *models.Game {
	f.t.Helper()
	var g models.Game
	if err := f.db.First(&g, "id = ?", f.game.ID).Error; err != nil {
		f.t.Fatalf("reload game: %v", err)
	}
	return &g
}

func (f *fixture) reloadPlayer(seat int) *models.Player {
	f.t.Helper()
	var p models.Player
	if err := f.db.First(&p, "id = ?", f.players[seat].ID).Error; err != nil {
		f.t.Fatalf("reload player: %v", err)
	}
	return &p
}

func (f *fixture) hand(seat int) []string {
	f.t.Helper()
	var h models.Hand
	if err := f.db.First(&h, "game_id = ? AND player_id = ?", f.game.ID, f.players[seat].ID).Error; err != nil {
		f.t.Fatalf("reload hand: %v", err)
	}
	return models.JSONCards(h.Cards)
}

func (f *fixture) actionCount() int64 {
	f.t.Helper()
	var n int64
	if err := f.db.Model(&models.Action{}).Where("game_id = ?", f.game.ID).Count(&n).Error; err != nil {
		f.t.Fatalf("count actions: %v", err)
	}
	return n
}

// totalCards sums every card position for the conservation invariant.
func (f *fixture) totalCards() int {
	f.t.Helper()
	g := f.reloadGame()
	n := len(models.JSONCards(g.DrawPile)) + len(models.JSONCards(g.DiscardPile)) + len(models.JSONCards(g.RevealedSetup))
	if g.BurnCard != "" {
		n++
	}
	var hs []models.Hand
	if err := f.db.Where("game_id = ?", g.ID).Find(&hs).Error; err != nil {
		f.t.Fatalf("load hands: %v", err)
	}
	for _, h := range hs {
		n += len(models.JSONCards(h.Cards))
	}
	return n
}
