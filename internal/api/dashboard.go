package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wnt/memescore/internal/annotation"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/ledger"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/units"
	"github.com/wnt/memescore/internal/utils"
)

type tippedCreator struct {
	ledger.DestinationTotal
	Creator *models.Creator `json:"creator"`
}

// dashboard summarizes the tips a creator has sent, alongside their own score
func (s *Server) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c.Param("creator_id"))
	if !ok {
		badRequest(c, "invalid_creator_id")
		return
	}

	me, err := s.creators.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	grouped, err := s.ledger.GroupedBySource(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ids := utils.Map(grouped, func(g ledger.DestinationTotal) uint { return g.ToCreatorID })
	recipients, err := s.creators.GetMany(ctx, ids)
	if err != nil {
		s.fail(c, err)
		return
	}
	byID := utils.IndexBy(recipients, func(cr models.Creator) uint { return cr.ID })

	var tipCount int64
	totals := make([]string, 0, len(grouped))
	tipped := make([]tippedCreator, 0, len(grouped))
	for _, g := range grouped {
		entry := tippedCreator{DestinationTotal: g}
		if cr, ok := byID[g.ToCreatorID]; ok {
			entry.Creator = &cr
		}
		tipped = append(tipped, entry)
		totals = append(totals, g.TotalAmount)
		tipCount += g.Count
	}

	total, err := units.Sum(totals...)
	if err != nil {
		s.fail(c, apperr.Internal("api.dashboard", err))
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
		"me":                       me,
		"total_contributed_amount": total,
		"tip_count":                tipCount,
		"unique_creators":          len(grouped),
		"tipped_creators":          tipped,
		"latest_score":             latest,
		"annotation":               note,
	})
}
