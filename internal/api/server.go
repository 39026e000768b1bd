// Package api exposes the MemeScore HTTP surface over gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/annotation"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/ledger"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/orchestrator"
	"github.com/wnt/memescore/internal/repository"
	"github.com/wnt/memescore/internal/social"
	"gorm.io/gorm"
)

// Scorer records tips and recomputes scores
type Scorer interface {
	NotifyTip(ctx context.Context, n orchestrator.TipNotification) (orchestrator.TipResult, error)
	RecomputeOne(ctx context.Context, creatorID uint) (models.ScoreSnapshot, error)
	RecomputeAll(ctx context.Context) (orchestrator.Report, error)
}

// Enqueuer schedules creators on the recompute queue
type Enqueuer interface {
	PushCreators(ctx context.Context, creatorIDs []uint) error
}

// TokenLookup resolves a creator's payment token on the social platform
type TokenLookup interface {
	FetchTokenAddress(ctx context.Context, id social.Identity) (string, error)
}

// Deps are the collaborators the handlers need. Annotator, Tokens and Queue are optional.
type Deps struct {
	DB        *gorm.DB
	Scorer    Scorer
	Ledger    *ledger.Ledger
	Annotator annotation.Annotator
	Tokens    TokenLookup
	Queue     Enqueuer
	Window    time.Duration
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Server holds the handler dependencies
type Server struct {
	scorer    Scorer
	creators  *repository.Creators
	snapshots *repository.Snapshots
	ledger    *ledger.Ledger
	annotator annotation.Annotator
	tokens    TokenLookup
	queue     Enqueuer
	window    time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewServer wires the handler dependencies
func NewServer(d Deps) *Server {
	if d.Annotator == nil {
		d.Annotator = annotation.Disabled{}
	}
	if d.Window <= 0 {
		d.Window = orchestrator.DefaultWindow
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	return &Server{
		scorer:    d.Scorer,
		creators:  repository.NewCreators(d.DB),
		snapshots: repository.NewSnapshots(d.DB),
		ledger:    d.Ledger,
		annotator: d.Annotator,
		tokens:    d.Tokens,
		queue:     d.Queue,
		window:    d.Window,
		now:       d.Now,
		logger:    d.Logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the gin engine with middleware and all routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(s.logger), requestMetrics())

	r.GET("/health", s.health)

	r.POST("/tips/notify", s.notifyTip)

	creators := r.Group("/creators")
	creators.GET("/search", s.searchCreators)
	creators.GET("/ranking/top", s.ranking)
	creators.GET("/from-address/:address", s.creatorFromAddress)
	creators.GET("/:id", s.creatorDetail)

	r.GET("/scores/creator/:id", s.scoreHistory)
	r.GET("/dashboard/:creator_id", s.dashboard)
	r.POST("/wallet/connect", s.connectWallet)

	admin := r.Group("/admin/recompute")
	admin.POST("/all", s.recomputeAll)
	admin.POST("/enqueue", s.enqueueAll)
	admin.POST("/:creator_id", s.recomputeOne)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fail writes err as a JSON error with the status its kind maps to
func (s *Server) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": string(apperr.KindOf(err))}

	var appErr *apperr.Error
	if status < http.StatusInternalServerError && errors.As(err, &appErr) && appErr.Message != "" {
		body["message"] = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		loggerFrom(c, s.logger).Error().Err(err).Int("status", status).Msg("Request failed")
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseLimit reads ?limit=, falling back to def when absent or malformed and capping at max
func parseLimit(c *gin.Context, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
