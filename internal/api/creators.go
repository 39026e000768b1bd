package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wnt/memescore/internal/annotation"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/chain"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/social"
)

const (
	searchLimit        = 20
	recentTipsLimit    = 50
	defaultRankLimit   = 100
	maxRankLimit       = 3000
	defaultScoresLimit = 50
	maxScoresLimit     = 1000
)

type rankedCreator struct {
	models.Creator
	Rank        int64                 `json:"rank"`
	LatestScore *models.ScoreSnapshot `json:"latest_score"`
}

func (s *Server) searchCreators(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"creators": []models.Creator{}})
		return
	}

	creators, err := s.creators.Search(c.Request.Context(), q, searchLimit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creators": creators})
}

func (s *Server) ranking(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseLimit(c, defaultRankLimit, maxRankLimit)

	search := strings.TrimSpace(c.Query("search"))
	creators, err := s.creators.Ranking(ctx, search, limit)
	if err != nil {
		s.fail(c, err)
		return
	}

	ids := make([]uint, 0, len(creators))
	for _, cr := range creators {
		ids = append(ids, cr.ID)
	}
	latest, err := s.snapshots.LatestByCreators(ctx, ids)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]rankedCreator, 0, len(creators))
	for i, cr := range creators {
		// rank is always global; a filtered list needs it looked up
		rank := int64(i + 1)
		if search != "" {
			if rank, err = s.creators.Rank(ctx, cr); err != nil {
				s.fail(c, err)
				return
			}
		}
		entry := rankedCreator{Creator: cr, Rank: rank}
		if snap, ok := latest[cr.ID]; ok {
			entry.LatestScore = &snap
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"creators": out})
}

func (s *Server) creatorDetail(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c.Param("id"))
	if !ok {
		badRequest(c, "invalid_id")
		return
	}

	creator, err := s.creators.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	aggregate, err := s.ledger.WindowAggregate(ctx, id, s.now().Add(-s.window))
	if err != nil {
		s.fail(c, err)
		return
	}

	recent, err := s.ledger.Recent(ctx, id, recentTipsLimit)
	if err != nil {
		s.fail(c, err)
		return
	}

	rank, err := s.creators.Rank(ctx, creator)
	if err != nil {
		s.fail(c, err)
		return
	}

	snap, found, err := s.snapshots.Latest(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	var latest *models.ScoreSnapshot
	note := annotation.Unavailable()
	if found {
		latest = &snap
		note = s.annotator.Annotate(ctx, statsOf(snap))
	}

	c.JSON(http.StatusOK, gin.H{
		"creator": creator,
		"rank":    rank,
		"stats": gin.H{
			"tip_count_7d":        aggregate.Count,
			"tip_amount_total_7d": aggregate.TotalAmount,
		},
		"latest_score": latest,
		"recent_tips":  recent,
		"annotation":   note,
	})
}

func (s *Server) creatorFromAddress(c *gin.Context) {
	creator, ok := s.lookupWallet(c, c.Param("address"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": creator})
}

type connectWalletRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

func (s *Server) connectWallet(c *gin.Context) {
	var req connectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_wallet_address")
		return
	}

	creator, ok := s.lookupWallet(c, req.WalletAddress)
	if !ok {
		return
	}

	resp := gin.H{"ok": true, "creator": creator}
	if s.tokens != nil {
		token, err := s.tokens.FetchTokenAddress(c.Request.Context(), social.IdentityOf(creator))
		if err != nil {
			loggerFrom(c, s.logger).Warn().Err(err).Uint("creator_id", creator.ID).Msg("Failed to resolve creator token")
		} else {
			resp["token_address"] = token
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) lookupWallet(c *gin.Context, raw string) (models.Creator, bool) {
	address := strings.TrimSpace(raw)
	if _, ok := chain.NormalizeAddress(address); !ok || address == "" {
		badRequest(c, "invalid_wallet_address")
		return models.Creator{}, false
	}

	creator, err := s.creators.ByWallet(c.Request.Context(), address)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "creator_not_found_for_wallet"})
			return models.Creator{}, false
		}
		s.fail(c, err)
		return models.Creator{}, false
	}
	return creator, true
}

func (s *Server) scoreHistory(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		badRequest(c, "invalid_creator_id")
		return
	}

	scores, err := s.snapshots.History(c.Request.Context(), id, parseLimit(c, defaultScoresLimit, maxScoresLimit))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}
