package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/orchestrator"
	"github.com/wnt/memescore/internal/score"
)

type notifyTipRequest struct {
	ToCreatorID   uint   `json:"to_creator_id" binding:"required"`
	FromCreatorID *uint  `json:"from_creator_id"`
	TokenAddress  string `json:"token_address" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	TxHash        string `json:"tx_hash" binding:"required"`
}

func (s *Server) notifyTip(c *gin.Context) {
	var req notifyTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body")
		return
	}

	result, err := s.scorer.NotifyTip(c.Request.Context(), orchestrator.TipNotification{
		ToCreatorID:   req.ToCreatorID,
		FromCreatorID: req.FromCreatorID,
		TokenAddress:  req.TokenAddress,
		Amount:        req.Amount,
		TxHash:        req.TxHash,
	})
	if err != nil {
		// a duplicate carries the already recorded tip; otherwise the tip is
		// durable even though the follow-up recompute failed
		if result.Tip.ID != 0 {
			if !apperr.Is(err, apperr.KindDuplicateTip) {
				loggerFrom(c, s.logger).Warn().Err(err).Uint("tip_id", result.Tip.ID).Msg("Tip recorded without fresh score")
			}
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{
				"error": string(apperr.KindOf(err)),
				"tip":   result.Tip,
			})
			return
		}
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"tip":        result.Tip,
		"meme_score": result.Snapshot.MemeScore,
		"stats":      statsOf(result.Snapshot),
	})
}

// statsOf returns the raw inputs a snapshot was computed from
func statsOf(snap models.ScoreSnapshot) score.Stats {
	return score.Stats{
		Likes:               snap.Likes,
		Replies:             snap.Replies,
		Reposts:             snap.Reposts,
		Quotes:              snap.Quotes,
		Views:               snap.Views,
		Followers:           snap.Followers,
		TipCount:            snap.TipCount,
		TipAmountMinorUnits: snap.TipAmount,
	}
}
