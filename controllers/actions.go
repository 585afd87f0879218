package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lettergame/loveletter-backend/models"
	"github.com/lettergame/loveletter-backend/services"
)

type actionRequest struct {
	PlayerID    string `json:"player_id" binding:"required"`
	Type        string `json:"type" binding:"required"`
	CardID      string `json:"card_id"`
	TargetID    string `json:"target_id"`
	GuessedRank int    `json:"guessed_rank"`
}

// SubmitAction feeds one player action into the resolver and, when the turn
// passes to a bot, schedules its move as a separate unit of work.
func (h *Handlers) SubmitAction(c *gin.Context) {
	roomID := c.Param("id")
	gameID := c.Param("gameId")

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Rooms.Authenticate(roomID, req.PlayerID, bearerToken(c)); err != nil {
		fail(c, err)
		return
	}

	typ := models.ActionType(req.Type)
	if typ != models.ActionResign {
		typ = models.ActionPlayCard
	}

	res, err := h.Resolver.SubmitAction(services.ActionRequest{
		RoomID:      roomID,
		GameID:      gameID,
		PlayerID:    req.PlayerID,
		Type:        typ,
		CardID:      req.CardID,
		TargetID:    req.TargetID,
		GuessedRank: req.GuessedRank,
	})
	if err != nil {
		fail(c, err)
		return
	}
	if !res.Success {
		c.JSON(statusFor(res.Kind), res)
		return
	}

	h.Bots.MaybeSchedule(roomID, res)
	c.JSON(http.StatusOK, res)
}
