package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lettergame/loveletter-backend/models"
)

// ------------------------------- round setup -------------------------------

func startRoundFor(t *testing.T, db *gorm.DB, seats int) (*Resolver, *models.Room, []*models.Player, *models.Game) {
	t.Helper()
	room := &models.Room{ID: uuid.NewString(), Code: "SETUPR", Status: models.RoomActive}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("create room: %v", err)
	}
	var players []*models.Player
	for i := 0; i < seats; i++ {
		p := newPlayer(room.ID, "P"+string(rune('0'+i)), i, i > 0)
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("create player: %v", err)
		}
		players = append(players, p)
	}
	resolver := NewResolver(db, NewBus(), "fixed-test-seed")
	var g *models.Game
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		g, err = resolver.StartRound(tx, room, players, nil)
		return err
	})
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	return resolver, room, players, g
}

func TestStartRoundTwoPlayers(t *testing.T) {
	db := newTestDB(t)
	_, _, players, g := startRoundFor(t, db, 2)

	var fresh models.Game
	if err := db.First(&fresh, "id = ?", g.ID).Error; err != nil {
		t.Fatalf("reload game: %v", err)
	}

	// 16 - 1 burn - 3 revealed - 2 dealt - 1 drawn on seat 0's turn-begin.
	if n := len(models.JSONCards(fresh.DrawPile)); n != 9 {
		t.Errorf("draw pile = %d, want 9", n)
	}
	if fresh.BurnCard == "" {
		t.Error("no burn card recorded")
	}
	if n := len(models.JSONCards(fresh.RevealedSetup)); n != 3 {
		t.Errorf("revealed setup = %d, want 3", n)
	}
	if fresh.Phase != models.PhaseChooseCard {
		t.Errorf("phase = %s, want choose_card", fresh.Phase)
	}
	if fresh.ActivePlayerID != players[0].ID || fresh.TurnIndex != 0 {
		t.Errorf("active = %s turn = %d, want seat 0", fresh.ActivePlayerID, fresh.TurnIndex)
	}

	var hands []models.Hand
	if err := db.Where("game_id = ?", g.ID).Find(&hands).Error; err != nil {
		t.Fatalf("load hands: %v", err)
	}
	sizes := map[string]int{}
	total := len(models.JSONCards(fresh.DrawPile)) + len(models.JSONCards(fresh.RevealedSetup)) + 1
	for _, h := range hands {
		sizes[h.PlayerID] = len(models.JSONCards(h.Cards))
		total += len(models.JSONCards(h.Cards))
	}
	if sizes[players[0].ID] != 2 {
		t.Errorf("seat 0 hand = %d, want 2 after turn-begin draw", sizes[players[0].ID])
	}
	if sizes[players[1].ID] != 1 {
		t.Errorf("seat 1 hand = %d, want 1", sizes[players[1].ID])
	}
	if total != 16 {
		t.Errorf("cards in play = %d, want 16", total)
	}
}

func TestStartRoundFourPlayersSkipsReveal(t *testing.T) {
	db := newTestDB(t)
	_, _, _, g := startRoundFor(t, db, 4)

	var fresh models.Game
	if err := db.First(&fresh, "id = ?", g.ID).Error; err != nil {
		t.Fatalf("reload game: %v", err)
	}
	if n := len(models.JSONCards(fresh.RevealedSetup)); n != 0 {
		t.Errorf("revealed setup = %d, want 0 with 4 players", n)
	}
	// 16 - 1 burn - 4 dealt - 1 turn-begin draw.
	if n := len(models.JSONCards(fresh.DrawPile)); n != 10 {
		t.Errorf("draw pile = %d, want 10", n)
	}
}

func TestStartRoundDeterministicWithSeed(t *testing.T) {
	dbA := newTestDB(t)
	_, _, _, gA := startRoundFor(t, dbA, 2)
	var a models.Game
	if err := dbA.First(&a, "id = ?", gA.ID).Error; err != nil {
		t.Fatal(err)
	}

	dbB := newTestDBNamed(t, t.Name()+"B")
	_, _, _, gB := startRoundFor(t, dbB, 2)
	var b models.Game
	if err := dbB.First(&b, "id = ?", gB.ID).Error; err != nil {
		t.Fatal(err)
	}

	if a.BurnCard != b.BurnCard {
		t.Errorf("seeded shuffles diverged: burn %s vs %s", a.BurnCard, b.BurnCard)
	}
	if string(a.DrawPile) != string(b.DrawPile) {
		t.Errorf("seeded shuffles diverged: piles differ")
	}
}

// ------------------------------ card effects -------------------------------

func TestGuardCorrectGuessEndsRound(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "prince"}, {"baron"}}, []string{"priest", "handmaid"})

	res := f.play(0, "guard", f.players[1].ID, 3)
	if !res.Success {
		t.Fatalf("play rejected: %s %s", res.Kind, res.Message)
	}

	if !f.reloadPlayer(1).IsEliminated {
		t.Error("target survived a correct guess")
	}
	g := f.reloadGame()
	if g.Phase != models.PhaseRoundEnd || g.ResultReason != models.EndElimination {
		t.Errorf("phase=%s reason=%s, want round_end/elimination", g.Phase, g.ResultReason)
	}
	winners := models.JSONCards(g.ResultWinners)
	if len(winners) != 1 || winners[0] != f.players[0].ID {
		t.Errorf("winners = %v, want [seat 0]", winners)
	}
	var room models.Room
	if err := f.db.First(&room, "id = ?", f.room.ID).Error; err != nil {
		t.Fatal(err)
	}
	if room.Status != models.RoomFinished {
		t.Errorf("room status = %s, want finished", room.Status)
	}
}

func TestGuardWrongGuessAdvancesTurn(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "prince"}, {"baron"}}, []string{"priest", "handmaid"})

	res := f.play(0, "guard", f.players[1].ID, 5)
	if !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if f.reloadPlayer(1).IsEliminated {
		t.Error("target eliminated on a wrong guess")
	}
	g := f.reloadGame()
	if g.ActivePlayerID != f.players[1].ID || g.TurnIndex != 1 {
		t.Errorf("turn did not advance to seat 1")
	}
	if n := len(f.hand(1)); n != 2 {
		t.Errorf("seat 1 hand = %d, want 2 after draw", n)
	}

	var last models.Action
	if err := f.db.Where("game_id = ?", f.game.ID).Order("id desc").First(&last).Error; err != nil {
		t.Fatal(err)
	}
	if last.Type != models.ActionGuess || last.GuessedRank != 5 {
		t.Errorf("recorded action = %s/%d, want guess/5", last.Type, last.GuessedRank)
	}
}

func TestCompareEliminatesLowerHand(t *testing.T) {
	f := newFixture(t, [][]string{{"baron", "prince"}, {"priest"}, {"guard"}}, []string{"guard", "guard"})

	res := f.play(0, "baron", f.players[1].ID, 0)
	if !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if !f.reloadPlayer(1).IsEliminated {
		t.Error("rank 2 should lose to rank 5")
	}
	if f.reloadPlayer(0).IsEliminated {
		t.Error("actor should survive")
	}
	g := f.reloadGame()
	if g.Phase != models.PhaseChooseCard {
		t.Errorf("round ended with 2 survivors left")
	}
	if g.ActivePlayerID != f.players[2].ID {
		t.Error("turn should skip the eliminated seat 1")
	}
}

func TestCompareTieEliminatesNobody(t *testing.T) {
	f := newFixture(t, [][]string{{"baron", "priest"}, {"priest"}}, []string{"guard", "guard"})

	if res := f.play(0, "baron", f.players[1].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if f.reloadPlayer(0).IsEliminated || f.reloadPlayer(1).IsEliminated {
		t.Error("a tie must eliminate no one")
	}
}

func TestDeckExhaustedHighestCardWins(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "handmaid"}, {"king"}}, nil)

	res := f.play(0, "guard", f.players[1].ID, 5)
	if !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	g := f.reloadGame()
	if g.Phase != models.PhaseRoundEnd || g.ResultReason != models.EndDeckExhausted {
		t.Fatalf("phase=%s reason=%s, want round_end/deck_exhausted", g.Phase, g.ResultReason)
	}
	winners := models.JSONCards(g.ResultWinners)
	if len(winners) != 1 || winners[0] != f.players[1].ID {
		t.Errorf("winners = %v, want the rank-6 holder", winners)
	}
	final := models.JSONHandsMap(g.FinalHands)
	if len(final[f.players[0].ID]) != 1 || final[f.players[0].ID][0] != "handmaid" {
		t.Errorf("final hand for seat 0 = %v", final[f.players[0].ID])
	}
	if len(final[f.players[1].ID]) != 1 || final[f.players[1].ID][0] != "king" {
		t.Errorf("final hand for seat 1 = %v", final[f.players[1].ID])
	}
}

func TestLastDrawThenExhaustionDoesNotCrash(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "priest"}, {"baron"}}, []string{"handmaid"})

	if res := f.play(0, "guard", f.players[1].ID, 5); !res.Success {
		t.Fatalf("first play rejected: %s", res.Message)
	}
	// Seat 1's turn-begin drew the last card.
	g := f.reloadGame()
	if n := len(models.JSONCards(g.DrawPile)); n != 0 {
		t.Fatalf("draw pile = %d, want 0", n)
	}

	if res := f.play(1, "handmaid", "", 0); !res.Success {
		t.Fatalf("second play rejected: %s", res.Message)
	}
	g = f.reloadGame()
	if g.ResultReason != models.EndDeckExhausted {
		t.Errorf("reason = %s, want deck_exhausted", g.ResultReason)
	}
	winners := models.JSONCards(g.ResultWinners)
	if len(winners) != 1 || winners[0] != f.players[1].ID {
		t.Errorf("winners = %v, want seat 1 (rank 3 beats rank 2)", winners)
	}
}

func TestPrinceForcesDiscardAndRedraw(t *testing.T) {
	f := newFixture(t, [][]string{{"prince", "guard"}, {"priest"}}, []string{"baron", "king"})

	if res := f.play(0, "prince", f.players[1].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	g := f.reloadGame()
	discard := models.JSONCards(g.DiscardPile)
	if len(discard) != 2 || discard[0] != "prince" || discard[1] != "priest" {
		t.Errorf("discard = %v, want [prince priest]", discard)
	}
	// Seat 1 drew baron as replacement, then king on turn-begin.
	h := f.hand(1)
	if len(h) != 2 || h[0] != "baron" || h[1] != "king" {
		t.Errorf("seat 1 hand = %v, want [baron king]", h)
	}
}

func TestPrinceOnPrincessEliminates(t *testing.T) {
	f := newFixture(t, [][]string{{"prince", "guard"}, {"princess"}}, []string{"baron"})

	if res := f.play(0, "prince", f.players[1].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if !f.reloadPlayer(1).IsEliminated {
		t.Error("discarding the princess must eliminate")
	}
	g := f.reloadGame()
	if g.ResultReason != models.EndElimination {
		t.Errorf("reason = %s, want elimination", g.ResultReason)
	}
	// No replacement draw after a princess discard.
	if n := len(models.JSONCards(g.DrawPile)); n != 1 {
		t.Errorf("draw pile = %d, want untouched 1", n)
	}
}

func TestPrinceSelfTarget(t *testing.T) {
	f := newFixture(t, [][]string{{"prince", "guard"}, {"priest"}}, []string{"baron", "king"})

	if res := f.play(0, "prince", f.players[0].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	h := f.hand(0)
	if len(h) != 1 || h[0] != "baron" {
		t.Errorf("seat 0 hand = %v, want [baron]", h)
	}
}

func TestPrinceWithEmptyPileNarratesNoDraw(t *testing.T) {
	f := newFixture(t, [][]string{{"prince", "guard"}, {"priest"}}, nil)

	if res := f.play(0, "prince", f.players[1].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if n := len(f.hand(1)); n != 0 {
		t.Errorf("seat 1 hand = %d, want 0 with nothing to draw", n)
	}
	var entry models.LogEntry
	if err := f.db.Where("game_id = ? AND message LIKE ?", f.game.ID, "%nothing left to draw%").
		First(&entry).Error; err != nil {
		t.Error("narration should not claim a draw from an empty pile")
	}
	var wrong int64
	f.db.Model(&models.LogEntry{}).Where("game_id = ? AND message LIKE ?", f.game.ID, "%drew a new card%").Count(&wrong)
	if wrong != 0 {
		t.Error("narration claims a draw that never happened")
	}
}

func TestKingSwapsHands(t *testing.T) {
	f := newFixture(t, [][]string{{"king", "guard"}, {"princess"}}, []string{"priest", "baron"})

	if res := f.play(0, "king", f.players[1].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if h := f.hand(0); len(h) != 1 || h[0] != "princess" {
		t.Errorf("seat 0 hand = %v, want [princess]", h)
	}
	h := f.hand(1)
	if len(h) != 2 || h[0] != "guard" || h[1] != "priest" {
		t.Errorf("seat 1 hand = %v, want [guard priest]", h)
	}
}

func TestShieldBlocksTargetingAndClearsOnTurnBegin(t *testing.T) {
	f := newFixture(t, [][]string{{"handmaid", "guard"}, {"countess"}}, []string{"guard", "priest", "baron"})

	if res := f.play(0, "handmaid", "", 0); !res.Success {
		t.Fatalf("handmaid rejected: %s", res.Message)
	}
	if !f.reloadPlayer(0).Shield {
		t.Fatal("shield not set")
	}

	// Seat 1's guard has no eligible target (only opponent is shielded);
	// the play succeeds as a no-op.
	res := f.play(1, "guard", "", 0)
	if !res.Success {
		t.Fatalf("fizzle play rejected: %s %s", res.Kind, res.Message)
	}
	if f.reloadPlayer(0).IsEliminated {
		t.Error("shielded player was affected")
	}
	var fizzle models.LogEntry
	if err := f.db.Where("game_id = ? AND message LIKE ?", f.game.ID, "%no valid target%").First(&fizzle).Error; err != nil {
		t.Error("missing no-valid-target narration")
	}

	// Back to seat 0: turn-begin clears the shield.
	if f.reloadGame().ActivePlayerID != f.players[0].ID {
		t.Fatal("turn did not return to seat 0")
	}
	if f.reloadPlayer(0).Shield {
		t.Error("shield must drop at the owner's next turn-begin")
	}
}

// --------------------------------- guards ----------------------------------

func TestOutOfTurnRejected(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "prince"}, {"baron"}}, []string{"priest"})

	res, err := f.resolver.SubmitAction(ActionRequest{
		RoomID: f.room.ID, GameID: f.game.ID, PlayerID: f.players[1].ID,
		Type: models.ActionPlayCard, CardID: "baron", TargetID: f.players[0].ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Kind != ErrNotYourTurn {
		t.Fatalf("got %+v, want not_your_turn rejection", res)
	}
	if n := len(f.hand(1)); n != 1 {
		t.Error("rejected play mutated the hand")
	}
	if f.actionCount() != 0 {
		t.Error("rejected play recorded an action")
	}
}

func TestGuessRankOneRejected(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "prince"}, {"baron"}}, []string{"priest"})

	res := f.play(0, "guard", f.players[1].ID, 1)
	if res.Success || res.Kind != ErrInvalidGuess {
		t.Fatalf("got %+v, want invalid_guess", res)
	}
	if n := len(f.hand(0)); n != 2 {
		t.Error("rejected play mutated the hand")
	}
}

func TestUnknownTargetRejected(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "prince"}, {"baron"}}, []string{"priest"})

	res := f.play(0, "guard", uuid.NewString(), 3)
	if res.Success || res.Kind != ErrInvalidTarget {
		t.Fatalf("got %+v, want invalid_target", res)
	}
}

func TestCardNotInHandRejected(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "prince"}, {"baron"}}, []string{"priest"})

	res := f.play(0, "king", f.players[1].ID, 0)
	if res.Success || res.Kind != ErrCardNotInHand {
		t.Fatalf("got %+v, want card_not_in_hand", res)
	}
}

func TestForcedCardConflict(t *testing.T) {
	f := newFixture(t, [][]string{{"countess", "prince"}, {"baron"}}, []string{"priest", "guard"})

	res := f.play(0, "prince", f.players[1].ID, 0)
	if res.Success || res.Kind != ErrForcedCardConflict {
		t.Fatalf("got %+v, want forced_card_conflict", res)
	}
	if !strings.Contains(res.Message, "Countess") {
		t.Errorf("message %q should name the forcing card", res.Message)
	}

	// Playing the forcing card itself is fine.
	if res := f.play(0, "countess", "", 0); !res.Success {
		t.Fatalf("countess rejected: %s %s", res.Kind, res.Message)
	}
}

func TestIdempotentResubmit(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "priest"}, {"baron"}, {"handmaid"}}, []string{"guard", "guard", "guard"})

	first := f.play(0, "guard", f.players[1].ID, 4)
	if !first.Success {
		t.Fatalf("first play rejected: %s", first.Message)
	}
	actions, discards := f.actionCount(), len(models.JSONCards(f.reloadGame().DiscardPile))

	second := f.play(0, "guard", f.players[1].ID, 4)
	if !second.Success {
		t.Fatalf("retry rejected: %s %s", second.Kind, second.Message)
	}
	if f.actionCount() != actions {
		t.Error("retry appended a second action row")
	}
	if len(models.JSONCards(f.reloadGame().DiscardPile)) != discards {
		t.Error("retry discarded the card twice")
	}
	if f.reloadPlayer(1).IsEliminated {
		t.Error("retry applied the effect twice")
	}

	// A different guess is not a retry.
	third := f.play(0, "guard", f.players[1].ID, 6)
	if third.Success {
		t.Error("non-identical resubmission must not pass the idempotency escape")
	}
}

// --------------------------------- resign ----------------------------------

func TestResignOutOfTurn(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "priest"}, {"baron"}, {"handmaid"}}, []string{"guard"})

	if res := f.resign(2); !res.Success {
		t.Fatalf("resign rejected: %s", res.Message)
	}
	if !f.reloadPlayer(2).IsEliminated {
		t.Error("resigner not eliminated")
	}
	g := f.reloadGame()
	if g.Phase != models.PhaseChooseCard || g.ActivePlayerID != f.players[0].ID {
		t.Error("resign by a non-active player must not move the turn")
	}

	if res := f.resign(1); !res.Success {
		t.Fatalf("second resign rejected: %s", res.Message)
	}
	g = f.reloadGame()
	if g.ResultReason != models.EndResign {
		t.Errorf("reason = %s, want resign", g.ResultReason)
	}
	winners := models.JSONCards(g.ResultWinners)
	if len(winners) != 1 || winners[0] != f.players[0].ID {
		t.Errorf("winners = %v, want the survivor", winners)
	}
}

func TestResignByActivePlayerAdvancesTurn(t *testing.T) {
	f := newFixture(t, [][]string{{"guard", "priest"}, {"baron"}, {"handmaid"}}, []string{"king"})

	if res := f.resign(0); !res.Success {
		t.Fatalf("resign rejected: %s", res.Message)
	}
	g := f.reloadGame()
	if g.ActivePlayerID != f.players[1].ID {
		t.Error("turn should pass to seat 1")
	}
	if n := len(f.hand(1)); n != 2 {
		t.Error("new active player should have drawn")
	}
}

// ------------------------------- invariants --------------------------------

func TestCardConservationAcrossPlays(t *testing.T) {
	f := newFixture(t, [][]string{{"prince", "guard"}, {"priest"}, {"handmaid"}}, []string{"baron", "king", "guard"})
	before := f.totalCards()

	if res := f.play(0, "prince", f.players[1].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if after := f.totalCards(); after != before {
		t.Errorf("conservation broken: %d cards before, %d after", before, after)
	}

	if res := f.play(1, "priest", f.players[0].ID, 0); !res.Success {
		t.Fatalf("play rejected: %s", res.Message)
	}
	if after := f.totalCards(); after != before {
		t.Errorf("conservation broken after peek: %d != %d", f.totalCards(), before)
	}
}
