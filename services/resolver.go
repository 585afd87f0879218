package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lettergame/loveletter-backend/game"
	"github.com/lettergame/loveletter-backend/models"
	"github.com/lettergame/loveletter-backend/utils/logger"
)

// Resolver owns every mutation of in-round game state. Each submitted action
// runs as one transaction: guards, effect, log rows, round-end check and turn
// advance either all commit or none do. Serialization of concurrent actions
// on the same room comes from the store (row lock on the game), never from a
// process-local mutex, so multiple server instances stay correct.
type Resolver struct {
	db          *gorm.DB
	bus         *Bus
	log         *zap.SugaredLogger
	shuffleSeed string // non-empty only outside production
}

func NewResolver(db *gorm.DB, bus *Bus, shuffleSeed string) *Resolver {
	return &Resolver{db: db, bus: bus, log: logger.Named("resolver"), shuffleSeed: shuffleSeed}
}

// ActionRequest is one validated client action. The identity pair
// (RoomID, PlayerID) is assumed to have been authenticated by the caller.
type ActionRequest struct {
	RoomID      string
	GameID      string
	PlayerID    string
	Type        models.ActionType
	CardID      string
	TargetID    string
	GuessedRank int
}

// ActionResult reports the outcome. Domain rejections land here as
// Success=false with a Kind and message; the submitting player keeps their
// hand and may immediately try a legal action instead. NextBotID is set when
// the newly active player is a bot so the caller can schedule its turn as a
// separate unit of work (the resolver never recurses into itself).
type ActionResult struct {
	Success   bool      `json:"success"`
	Kind      ErrorKind `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	GameID    string    `json:"game_id,omitempty"`
	NextBotID string    `json:"-"`
}

// SubmitAction validates and applies one action inside a single transaction,
// then publishes a room-changed wake-up after commit.
func (r *Resolver) SubmitAction(req ActionRequest) (*ActionResult, error) {
	res := &ActionResult{GameID: req.GameID}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		switch req.Type {
		case models.ActionResign:
			return r.resign(tx, req, res)
		default:
			return r.playCard(tx, req, res)
		}
	})
	if err != nil {
		var derr *DomainError
		if errors.As(err, &derr) {
			r.log.Infow("action rejected",
				"room", req.RoomID, "player", req.PlayerID, "kind", derr.Kind)
			return &ActionResult{Success: false, Kind: derr.Kind, Message: derr.Message, GameID: req.GameID}, nil
		}
		return nil, fmt.Errorf("submit action: %w", err)
	}

	r.bus.Publish(req.RoomID)
	return res, nil
}

// ---------------------- round state (one transaction) ----------------------

// round is the decoded working copy of one game's state inside a transaction.
// Mutations happen on these structures; persist() writes everything back.
type round struct {
	room    *models.Room
	game    *models.Game
	players []*models.Player // seat order
	byID    map[string]*models.Player

	handRows map[string]*models.Hand
	hands    map[string][]string // playerID -> card ids, index 0 = draw slot
	draw     []string
	discard  []string

	newActions []*models.Action
	newLogs    []*models.LogEntry
}

func loadRound(tx *gorm.DB, roomID, gameID string) (*round, error) {
	var room models.Room
	if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(ErrRoomNotFound, "room %s not found", roomID)
		}
		return nil, err
	}

	// Lock the game row so concurrent actions on the same room serialize at
	// the store. SQLite (tests) has no FOR UPDATE; its writer lock suffices.
	q := tx.Model(&models.Game{})
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var g models.Game
	if err := q.First(&g, "id = ? AND room_id = ?", gameID, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(ErrGameNotFound, "game %s not found in room %s", gameID, roomID)
		}
		return nil, err
	}

	var players []*models.Player
	if err := tx.Where("room_id = ?", roomID).Order("seat asc").Find(&players).Error; err != nil {
		return nil, err
	}
	var handRows []*models.Hand
	if err := tx.Where("game_id = ?", g.ID).Find(&handRows).Error; err != nil {
		return nil, err
	}

	rd := &round{
		room:     &room,
		game:     &g,
		players:  players,
		byID:     make(map[string]*models.Player, len(players)),
		handRows: make(map[string]*models.Hand, len(handRows)),
		hands:    make(map[string][]string, len(handRows)),
		draw:     models.JSONCards(g.DrawPile),
		discard:  models.JSONCards(g.DiscardPile),
	}
	for _, p := range players {
		rd.byID[p.ID] = p
	}
	for _, h := range handRows {
		rd.handRows[h.PlayerID] = h
		rd.hands[h.PlayerID] = models.JSONCards(h.Cards)
	}
	return rd, nil
}

func (rd *round) persist(tx *gorm.DB) error {
	rd.game.DrawPile = models.CardsJSON(rd.draw)
	rd.game.DiscardPile = models.CardsJSON(rd.discard)
	if err := tx.Save(rd.game).Error; err != nil {
		return err
	}
	for _, p := range rd.players {
		if err := tx.Save(p).Error; err != nil {
			return err
		}
	}
	for pid, h := range rd.handRows {
		h.Cards = models.CardsJSON(rd.hands[pid])
		if err := tx.Save(h).Error; err != nil {
			return err
		}
	}
	for _, a := range rd.newActions {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
	}
	for _, l := range rd.newLogs {
		if err := tx.Create(l).Error; err != nil {
			return err
		}
	}
	// Saving the room persists status transitions and bumps updated_at, which
	// both pollers' fingerprints and the cleanup TTLs key on.
	return tx.Save(rd.room).Error
}

func (rd *round) record(actor string, typ models.ActionType, cardID, targetID string, guess int) {
	rd.newActions = append(rd.newActions, &models.Action{
		GameID:      rd.game.ID,
		ActorID:     actor,
		Type:        typ,
		CardID:      cardID,
		TargetID:    targetID,
		GuessedRank: guess,
	})
}

func (rd *round) narrate(actorID, icon, format string, args ...interface{}) {
	rd.newLogs = append(rd.newLogs, &models.LogEntry{
		GameID:  rd.game.ID,
		ActorID: actorID,
		Icon:    icon,
		Message: fmt.Sprintf(format, args...),
	})
}

func (rd *round) survivors() []*models.Player {
	var out []*models.Player
	for _, p := range rd.players {
		if p.Role == models.RolePlayer && !p.IsEliminated {
			out = append(out, p)
		}
	}
	return out
}

// ------------------------------- play card --------------------------------

func (r *Resolver) playCard(tx *gorm.DB, req ActionRequest, res *ActionResult) error {
	rd, err := loadRound(tx, req.RoomID, req.GameID)
	if err != nil {
		return err
	}
	g := rd.game

	actor := rd.byID[req.PlayerID]
	if actor == nil {
		return reject(ErrUnauthorized, "player %s is not seated in this room", req.PlayerID)
	}

	// Idempotency escape first: a request identical to the most recently
	// applied action is a client retry of a play that already went through.
	// It must short-circuit before the turn guard, because applying the
	// original already advanced the turn away from this actor.
	if r.isDuplicate(tx, rd, req) {
		res.Success = true
		res.Message = "duplicate submission, already applied"
		return nil
	}

	// 1. Phase and turn guards.
	if g.Phase != models.PhaseChooseCard {
		return reject(ErrInvalidPhase, "no card can be played while the game is in phase %q", g.Phase)
	}
	if g.ActivePlayerID != actor.ID || actor.IsEliminated {
		return reject(ErrNotYourTurn, "it is not %s's turn", actor.Nickname)
	}

	// 2. Hand guard.
	hand := rd.hands[actor.ID]
	idx := indexOf(hand, req.CardID)
	if idx < 0 {
		return reject(ErrCardNotInHand, "card %s is not in your hand", req.CardID)
	}
	card, ok := game.Lookup(req.CardID)
	if !ok {
		return reject(ErrCardNotInHand, "unknown card %s", req.CardID)
	}

	// 3. Targeting eligibility. An empty eligible set never blocks the play;
	// the effect just fizzles (step applied below).
	eligible := eligibleTargets(card, actor.ID, rd.players)
	needsTarget := card.Targeting == game.TargetOpponent || card.Targeting == game.TargetAny
	targetable := needsTarget && len(eligible) > 0

	// 4. Guess guard.
	if card.RequiresGuess && targetable {
		if req.GuessedRank < game.MinGuessRank || req.GuessedRank > game.MaxGuessRank {
			return reject(ErrInvalidGuess, "guess must be a rank from %d to %d", game.MinGuessRank, game.MaxGuessRank)
		}
	}

	// 5. Target guard.
	var target *models.Player
	if targetable {
		if req.TargetID == "" || indexOf(eligible, req.TargetID) < 0 {
			return reject(ErrInvalidTarget, "that player cannot be targeted")
		}
		target = rd.byID[req.TargetID]
	}

	// 6. Forced-play guards: a held card can forbid playing this one.
	if derr := checkForcedPlay(hand, card); derr != nil {
		return derr
	}

	// 7. Apply: card leaves the hand, lands on the discard pile, and the
	// action row is written even for fizzled effects (audit + idempotency).
	rd.hands[actor.ID] = append(hand[:idx:idx], hand[idx+1:]...)
	rd.discard = append(rd.discard, card.ID)
	rd.record(actor.ID, actionTypeFor(card), card.ID, req.TargetID, req.GuessedRank)
	actor.LastActiveAt = time.Now()

	if needsTarget && !targetable {
		rd.narrate(actor.ID, "🚫", "%s played %s — no valid target, effect did not trigger.", actor.Nickname, card.Name)
	} else {
		r.resolveEffect(rd, card, actor, target, req.GuessedRank)
	}

	return r.finishPlay(tx, rd, res)
}

// isDuplicate reports whether req exactly matches the most recent action of
// this game. It only smooths over a retried submission of the immediately
// preceding play, nothing older.
func (r *Resolver) isDuplicate(tx *gorm.DB, rd *round, req ActionRequest) bool {
	var last models.Action
	if err := tx.Where("game_id = ?", rd.game.ID).Order("id desc").First(&last).Error; err != nil {
		return false
	}
	card, ok := game.Lookup(req.CardID)
	if !ok {
		return false
	}
	return last.ActorID == req.PlayerID &&
		last.Type == actionTypeFor(card) &&
		last.CardID == req.CardID &&
		last.TargetID == req.TargetID &&
		last.GuessedRank == req.GuessedRank
}

// actionTypeFor maps a card's effect onto the recorded action type, so guard
// plays log as guesses, priest plays as peeks and baron plays as compares.
func actionTypeFor(c game.Card) models.ActionType {
	switch c.Effect {
	case game.EffectGuessEliminate:
		return models.ActionGuess
	case game.EffectPeek:
		return models.ActionPeek
	case game.EffectCompare:
		return models.ActionCompare
	default:
		return models.ActionPlayCard
	}
}

// eligibleTargets computes the players a card may legally select: eliminated
// players are always excluded, shielded players are excluded when the card
// says so, and the actor targeting themself is exempt from the shield rule.
func eligibleTargets(c game.Card, actorID string, players []*models.Player) []string {
	var out []string
	for _, p := range players {
		if p.Role != models.RolePlayer || p.IsEliminated {
			continue
		}
		switch c.Targeting {
		case game.TargetOpponent:
			if p.ID == actorID {
				continue
			}
		case game.TargetAny:
			// actor included
		default:
			continue
		}
		if c.CannotTargetShielded && p.Shield && p.ID != actorID {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

// checkForcedPlay enforces the catalog's declarative must-play rules against
// the full hand (the card being played is still in it here).
func checkForcedPlay(hand []string, playing game.Card) *DomainError {
	sum := 0
	highest := 0
	for _, id := range hand {
		c := game.MustLookup(id)
		sum += c.Rank
		if c.Rank > highest {
			highest = c.Rank
		}
	}
	for _, id := range hand {
		held := game.MustLookup(id)
		if held.ID == playing.ID {
			continue
		}
		for _, rank := range held.MustPlayOverRanks {
			if rank == playing.Rank {
				return reject(ErrForcedCardConflict, "the %s must be played before a rank-%d card", held.Name, rank)
			}
		}
		if held.MustPlayRankSum > 0 && held.Rank == highest && sum >= held.MustPlayRankSum && playing.Rank < held.Rank {
			return reject(ErrForcedCardConflict, "the %s must be played first", held.Name)
		}
	}
	return nil
}

// ----------------------------- effect dispatch -----------------------------

func (r *Resolver) resolveEffect(rd *round, card game.Card, actor, target *models.Player, guess int) {
	switch card.Effect {
	case game.EffectGuessEliminate:
		th := rd.hands[target.ID]
		if len(th) == 0 {
			rd.narrate(actor.ID, "", "%s played %s against %s, who holds no card.",
				actor.Nickname, card.Name, target.Nickname)
			return
		}
		tc := game.MustLookup(th[0])
		if tc.Rank == guess {
			target.IsEliminated = true
			rd.narrate(actor.ID, "🎯", "%s played %s and guessed %d against %s — correct! %s is out.",
				actor.Nickname, card.Name, guess, target.Nickname, target.Nickname)
		} else {
			rd.narrate(actor.ID, "", "%s played %s and guessed %d against %s — wrong.",
				actor.Nickname, card.Name, guess, target.Nickname)
		}

	case game.EffectPeek:
		// No state change; the projector reveals the peeked card to the actor
		// only, reconstructed from this action row.
		rd.narrate(actor.ID, "👁", "%s played %s and looked at %s's hand.",
			actor.Nickname, card.Name, target.Nickname)

	case game.EffectCompare:
		aRank := maxHandRank(rd.hands[actor.ID])
		tRank := maxHandRank(rd.hands[target.ID])
		switch {
		case aRank > tRank:
			target.IsEliminated = true
			rd.narrate(actor.ID, "⚔️", "%s and %s compared hands — %s is out.",
				actor.Nickname, target.Nickname, target.Nickname)
		case tRank > aRank:
			actor.IsEliminated = true
			rd.narrate(actor.ID, "⚔️", "%s and %s compared hands — %s is out.",
				actor.Nickname, target.Nickname, actor.Nickname)
		default:
			rd.narrate(actor.ID, "⚔️", "%s and %s compared hands — a tie, no one is out.",
				actor.Nickname, target.Nickname)
		}

	case game.EffectShield:
		actor.Shield = true
		rd.narrate(actor.ID, "🛡", "%s played %s and is protected until their next turn.",
			actor.Nickname, card.Name)

	case game.EffectForceDiscard:
		th := rd.hands[target.ID]
		if len(th) == 0 {
			rd.narrate(actor.ID, "", "%s played %s against %s, who had nothing to discard.",
				actor.Nickname, card.Name, target.Nickname)
			return
		}
		dropped := th[0]
		rd.hands[target.ID] = append([]string{}, th[1:]...)
		rd.discard = append(rd.discard, dropped)
		dc := game.MustLookup(dropped)
		if dc.Effect == game.EffectSelfEliminate {
			target.IsEliminated = true
			rd.narrate(actor.ID, "💔", "%s forced %s to discard the %s — %s is out!",
				actor.Nickname, target.Nickname, dc.Name, target.Nickname)
			return
		}
		if len(rd.draw) > 0 {
			rd.hands[target.ID] = append(rd.hands[target.ID], rd.draw[0])
			rd.draw = rd.draw[1:]
			rd.narrate(actor.ID, "", "%s played %s — %s discarded the %s and drew a new card.",
				actor.Nickname, card.Name, target.Nickname, dc.Name)
		} else {
			rd.narrate(actor.ID, "", "%s played %s — %s discarded the %s with nothing left to draw.",
				actor.Nickname, card.Name, target.Nickname, dc.Name)
		}

	case game.EffectSwapHands:
		if target.ID != actor.ID {
			rd.hands[actor.ID], rd.hands[target.ID] = rd.hands[target.ID], rd.hands[actor.ID]
		}
		rd.narrate(actor.ID, "🔄", "%s played %s and traded hands with %s.",
			actor.Nickname, card.Name, target.Nickname)

	case game.EffectConditionalDiscard:
		rd.narrate(actor.ID, "", "%s played the %s.", actor.Nickname, card.Name)

	case game.EffectSelfEliminate:
		actor.IsEliminated = true
		rd.narrate(actor.ID, "💔", "%s played the %s and is out of the round!",
			actor.Nickname, card.Name)
	}
}

func maxHandRank(hand []string) int {
	best := 0
	for _, id := range hand {
		if r := game.MustLookup(id).Rank; r > best {
			best = r
		}
	}
	return best
}

// ------------------------- round end / turn advance ------------------------

func (r *Resolver) finishPlay(tx *gorm.DB, rd *round, res *ActionResult) error {
	alive := rd.survivors()

	switch {
	case len(alive) <= 1:
		r.conclude(rd, models.EndElimination, alive, false)
	case len(rd.draw) == 0:
		best := 0
		for _, p := range alive {
			if rank := maxHandRank(rd.hands[p.ID]); rank > best {
				best = rank
			}
		}
		var winners []*models.Player
		for _, p := range alive {
			if maxHandRank(rd.hands[p.ID]) == best {
				winners = append(winners, p)
			}
		}
		r.conclude(rd, models.EndDeckExhausted, winners, true)
	default:
		rd.beginTurn(nextSurvivor(rd, rd.game.TurnIndex))
	}

	if err := rd.persist(tx); err != nil {
		return err
	}

	if rd.game.Phase == models.PhaseChooseCard {
		if active := rd.byID[rd.game.ActivePlayerID]; active != nil && active.IsBot {
			res.NextBotID = active.ID
		}
	}
	res.Success = true
	return nil
}

// conclude closes the round: result recorded on the game, room marked
// finished. finalHands additionally snapshots every survivor's hand for the
// deck-exhaustion reveal.
func (r *Resolver) conclude(rd *round, reason models.EndReason, winners []*models.Player, finalHands bool) {
	ids := make([]string, 0, len(winners))
	names := ""
	for _, w := range winners {
		ids = append(ids, w.ID)
		if names != "" {
			names += " and "
		}
		names += w.Nickname
	}

	g := rd.game
	g.Phase = models.PhaseRoundEnd
	g.ActivePlayerID = ""
	g.ResultReason = reason
	g.ResultWinners = models.CardsJSON(ids)
	if finalHands {
		m := map[string][]string{}
		for _, p := range rd.survivors() {
			m[p.ID] = rd.hands[p.ID]
		}
		g.FinalHands = models.HandsMapJSON(m)
	}
	rd.room.Status = models.RoomFinished

	switch {
	case len(winners) == 0:
		rd.narrate("", "🏁", "The round ends in a draw — no one is left standing.")
	default:
		rd.narrate("", "🏆", "The round is over: %s wins!", names)
	}

	r.log.Infow("round concluded", "room", rd.room.ID, "game", g.ID,
		"reason", reason, "winners", ids)
}

// beginTurn starts p's turn: shield drops, a card is drawn if any remain,
// and the game waits on their card choice. An empty draw pile makes the draw
// a no-op; the deck-exhaustion check happens after plays, not here.
func (rd *round) beginTurn(p *models.Player) {
	p.Shield = false
	if len(rd.draw) > 0 {
		rd.hands[p.ID] = append(rd.hands[p.ID], rd.draw[0])
		rd.draw = rd.draw[1:]
	}
	rd.game.Phase = models.PhaseChooseCard
	rd.game.ActivePlayerID = p.ID
	rd.game.TurnIndex = p.Seat
}

// nextSurvivor finds the first non-eliminated player after the given seat,
// wrapping around the table.
func nextSurvivor(rd *round, afterSeat int) *models.Player {
	n := len(rd.players)
	for i := 1; i <= n; i++ {
		p := rd.players[(afterSeat+i)%n]
		if p.Role == models.RolePlayer && !p.IsEliminated {
			return p
		}
	}
	return nil
}

// --------------------------------- resign ----------------------------------

func (r *Resolver) resign(tx *gorm.DB, req ActionRequest, res *ActionResult) error {
	rd, err := loadRound(tx, req.RoomID, req.GameID)
	if err != nil {
		return err
	}
	g := rd.game

	if g.Phase != models.PhaseChooseCard {
		return reject(ErrInvalidPhase, "there is no round in progress to resign from")
	}
	actor := rd.byID[req.PlayerID]
	if actor == nil {
		return reject(ErrUnauthorized, "player %s is not seated in this room", req.PlayerID)
	}
	if actor.IsEliminated {
		return reject(ErrInvalidPhase, "%s is already out of the round", actor.Nickname)
	}

	actor.IsEliminated = true
	actor.LastActiveAt = time.Now()
	rd.record(actor.ID, models.ActionResign, "", "", 0)
	rd.narrate(actor.ID, "🏳", "%s resigned from the round.", actor.Nickname)

	alive := rd.survivors()
	if len(alive) <= 1 {
		r.conclude(rd, models.EndResign, alive, false)
	} else if g.ActivePlayerID == actor.ID {
		rd.beginTurn(nextSurvivor(rd, g.TurnIndex))
	}

	if err := rd.persist(tx); err != nil {
		return err
	}
	if rd.game.Phase == models.PhaseChooseCard {
		if active := rd.byID[rd.game.ActivePlayerID]; active != nil && active.IsBot {
			res.NextBotID = active.ID
		}
	}
	res.Success = true
	return nil
}

// --------------------------------- setup -----------------------------------

// StartRound builds, shuffles and deals a fresh deck, creates the Game row
// and runs turn-begin for seat 0. Runs inside the caller's transaction (room
// creation or an explicit start).
func (r *Resolver) StartRound(tx *gorm.DB, room *models.Room, players []*models.Player, substitutions []string) (*models.Game, error) {
	deck := game.Shuffle(game.BuildDeck(substitutions), r.shuffleSeed)

	var seated []*models.Player
	for _, p := range players {
		if p.Role == models.RolePlayer {
			seated = append(seated, p)
		}
	}
	if len(seated) < 2 {
		return nil, reject(ErrInsufficientPlayers, "a round needs at least 2 players")
	}

	burn := deck[0]
	deck = deck[1:]

	var revealed []string
	if len(seated) == 2 {
		revealed = append([]string{}, deck[:3]...)
		deck = deck[3:]
	}

	var priorRounds int64
	if err := tx.Model(&models.Game{}).Where("room_id = ?", room.ID).Count(&priorRounds).Error; err != nil {
		return nil, err
	}

	g := &models.Game{
		ID:            uuid.NewString(),
		RoomID:        room.ID,
		Phase:         models.PhaseDraw,
		Round:         int(priorRounds) + 1,
		BurnCard:      burn,
		RevealedSetup: models.CardsJSON(revealed),
		DiscardPile:   models.CardsJSON(nil),
	}

	rd := &round{
		room:     room,
		game:     g,
		players:  players,
		byID:     map[string]*models.Player{},
		handRows: map[string]*models.Hand{},
		hands:    map[string][]string{},
		draw:     deck,
		discard:  []string{},
	}
	for _, p := range players {
		rd.byID[p.ID] = p
	}
	for _, p := range seated {
		rd.hands[p.ID] = []string{rd.draw[0]}
		rd.draw = rd.draw[1:]
	}

	if err := tx.Create(g).Error; err != nil {
		return nil, err
	}
	for _, p := range seated {
		h := &models.Hand{GameID: g.ID, PlayerID: p.ID, Cards: models.CardsJSON(rd.hands[p.ID])}
		if err := tx.Create(h).Error; err != nil {
			return nil, err
		}
		rd.handRows[p.ID] = h
	}

	rd.narrate("", "🃏", "Round %d begins with %d players.", g.Round, len(seated))
	rd.beginTurn(seated[0])

	if err := rd.persist(tx); err != nil {
		return nil, err
	}
	r.log.Infow("round started", "room", room.ID, "game", g.ID,
		"players", len(seated), "draw_pile", len(rd.draw))
	return g, nil
}

// indexOf returns the position of s in list, or -1.
func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
