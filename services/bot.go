package services

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lettergame/loveletter-backend/game"
	"github.com/lettergame/loveletter-backend/models"
	"github.com/lettergame/loveletter-backend/utils/logger"
)

// BotDriver plays turns for bot seats. It re-enters the resolver through the
// exact same SubmitAction path a human uses; the only extra behavior is a
// randomized thinking delay, which happens outside any transaction so one
// slow bot never stalls another room.
type BotDriver struct {
	db        *gorm.DB
	resolver  *Resolver
	log       *zap.SugaredLogger
	baseDelay time.Duration
}

func NewBotDriver(db *gorm.DB, resolver *Resolver) *BotDriver {
	return &BotDriver{
		db:        db,
		resolver:  resolver,
		log:       logger.Named("bot"),
		baseDelay: 1200 * time.Millisecond,
	}
}

// SetBaseDelay adjusts the thinking delay; tests set it to zero.
func (b *BotDriver) SetBaseDelay(d time.Duration) { b.baseDelay = d }

// MaybeSchedule fires a goroutine to play the bot's turn if the result says
// a bot is up next. Chained bot turns loop inside the goroutine rather than
// recursing through the resolver.
func (b *BotDriver) MaybeSchedule(roomID string, res *ActionResult) {
	if res == nil || res.NextBotID == "" {
		return
	}
	go b.run(roomID, res.GameID, res.NextBotID)
}

func (b *BotDriver) run(roomID, gameID, botID string) {
	for botID != "" {
		b.think()

		req, err := b.chooseAction(roomID, gameID, botID)
		if err != nil {
			b.log.Errorw("bot could not read state", "room", roomID, "bot", botID, "err", err)
			return
		}
		if req == nil {
			// Someone else moved the game on while we were thinking.
			return
		}

		res, err := b.resolver.SubmitAction(*req)
		if err != nil {
			b.log.Errorw("bot action failed", "room", roomID, "bot", botID, "err", err)
			return
		}
		if !res.Success {
			// A stale read (turn already over) is expected under concurrency;
			// anything else is a policy bug worth logging loudly.
			b.log.Warnw("bot action rejected", "room", roomID, "bot", botID,
				"kind", res.Kind, "msg", res.Message)
			return
		}
		botID = res.NextBotID
	}
}

func (b *BotDriver) think() {
	if b.baseDelay <= 0 {
		return
	}
	// Top-level rand is mutex-guarded; bot goroutines for different rooms
	// share it safely.
	jitter := time.Duration(rand.Int63n(int64(b.baseDelay)))
	time.Sleep(b.baseDelay/2 + jitter)
}

// chooseAction reads current state (plain read, no transaction held open) and
// picks a legal play: defuse a forced-play card if held, otherwise the lowest
// rank; first eligible target; uniform random guess. Returns nil if it is no
// longer this bot's turn.
func (b *BotDriver) chooseAction(roomID, gameID, botID string) (*ActionRequest, error) {
	var g models.Game
	if err := b.db.First(&g, "id = ? AND room_id = ?", gameID, roomID).Error; err != nil {
		return nil, err
	}
	if g.Phase != models.PhaseChooseCard || g.ActivePlayerID != botID {
		return nil, nil
	}

	var players []*models.Player
	if err := b.db.Where("room_id = ?", roomID).Order("seat asc").Find(&players).Error; err != nil {
		return nil, err
	}
	var handRow models.Hand
	if err := b.db.First(&handRow, "game_id = ? AND player_id = ?", gameID, botID).Error; err != nil {
		return nil, err
	}
	hand := models.JSONCards(handRow.Cards)
	if len(hand) == 0 {
		return nil, nil
	}

	pick := game.MustLookup(hand[0])
	for _, id := range hand {
		c := game.MustLookup(id)
		if len(c.MustPlayOverRanks) > 0 {
			pick = c
			break
		}
		if c.Rank < pick.Rank {
			pick = c
		}
	}

	req := &ActionRequest{
		RoomID:   roomID,
		GameID:   gameID,
		PlayerID: botID,
		Type:     models.ActionPlayCard,
		CardID:   pick.ID,
	}

	if pick.Targeting == game.TargetOpponent || pick.Targeting == game.TargetAny {
		eligible := eligibleTargets(pick, botID, players)
		if len(eligible) > 0 {
			req.TargetID = eligible[0]
			if pick.Targeting == game.TargetAny {
				// Prefer an opponent when one is available.
				for _, id := range eligible {
					if id != botID {
						req.TargetID = id
						break
					}
				}
			}
		}
	}
	if pick.RequiresGuess && req.TargetID != "" {
		req.GuessedRank = game.MinGuessRank + rand.Intn(game.MaxGuessRank-game.MinGuessRank+1)
	}
	return req, nil
}
