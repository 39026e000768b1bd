package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) recomputeOne(c *gin.Context) {
	id, ok := parseID(c.Param("creator_id"))
	if !ok {
		badRequest(c, "invalid_creator_id")
		return
	}

	snap, err := s.scorer.RecomputeOne(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"meme_score": snap.MemeScore,
		"stats":      statsOf(snap),
		"score":      snap,
	})
}

func (s *Server) recomputeAll(c *gin.Context) {
	report, err := s.scorer.RecomputeAll(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     len(report.Failed) == 0,
		"report": report,
	})
}

// enqueueAll hands every creator to the worker pool instead of recomputing inline
func (s *Server) enqueueAll(c *gin.Context) {
	if s.queue == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "queue_disabled"})
		return
	}

	ctx := c.Request.Context()
	ids, err := s.creators.ListIDs(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.queue.PushCreators(ctx, ids); err != nil {
		loggerFrom(c, s.logger).Error().Err(err).Msg("Failed to enqueue creators")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "queue_unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "enqueued": len(ids)})
}
