// Package orchestrator recomputes creator scores. It is the only writer of
// score snapshots and of the creators.meme_score pointer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/ledger"
	"github.com/wnt/memescore/internal/logger"
	"github.com/wnt/memescore/internal/metrics"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/repository"
	"github.com/wnt/memescore/internal/score"
	"github.com/wnt/memescore/internal/social"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultWindow is the trailing period engagement and tips are scored over
const DefaultWindow = 7 * 24 * time.Hour

// StatsSource reads windowed engagement and follower counts
type StatsSource interface {
	FetchWindowStats(ctx context.Context, id social.Identity, windowStart time.Time) (social.WindowStats, error)
	FetchFollowerCount(ctx context.Context, id social.Identity) (int64, error)
}

// TipLedger records tips and aggregates them over a window
type TipLedger interface {
	Record(ctx context.Context, in ledger.RecordInput) (models.Tip, error)
	WindowAggregate(ctx context.Context, toCreatorID uint, windowStart time.Time) (ledger.Aggregate, error)
	FindByTxHash(ctx context.Context, txHash string) (models.Tip, error)
}

// TipVerifier confirms a tip transaction on chain before it is recorded
type TipVerifier interface {
	VerifyTip(ctx context.Context, txHash string) error
}

// Config holds the orchestrator's tunables
type Config struct {
	Window      time.Duration
	Concurrency int
}

// Orchestrator coordinates stats fetches, the ledger and the score engine
type Orchestrator struct {
	db          *gorm.DB
	creators    *repository.Creators
	stats       StatsSource
	ledger      TipLedger
	engine      *score.Engine
	verifier    TipVerifier
	window      time.Duration
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock overrides the clock used for window starts
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithVerifier requires tips to be verified on chain before they are recorded
func WithVerifier(v TipVerifier) Option {
	return func(o *Orchestrator) {
		o.verifier = v
	}
}

// New creates an orchestrator
func New(db *gorm.DB, stats StatsSource, tips TipLedger, engine *score.Engine, cfg Config, log zerolog.Logger, opts ...Option) *Orchestrator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	o := &Orchestrator{
		db:          db,
		creators:    repository.NewCreators(db),
		stats:       stats,
		ledger:      tips,
		engine:      engine,
		window:      cfg.Window,
		concurrency: cfg.Concurrency,
		now:         time.Now,
		logger:      log.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Engine returns the score engine in use
func (o *Orchestrator) Engine() *score.Engine {
	return o.engine
}

// RecomputeOne fetches fresh stats for a creator, computes a new breakdown,
// persists it as a snapshot and then points creators.meme_score at it. On any
// failure nothing is written.
func (o *Orchestrator) RecomputeOne(ctx context.Context, creatorID uint) (models.ScoreSnapshot, error) {
	start := time.Now()
	snap, err := o.recomputeOne(ctx, creatorID)

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.RecordRecompute(status, time.Since(start).Seconds())

	return snap, err
}

func (o *Orchestrator) recomputeOne(ctx context.Context, creatorID uint) (models.ScoreSnapshot, error) {
	const op = "orchestrator.RecomputeOne"
	log := logger.WithCreator(o.logger, creatorID)

	creator, err := o.creators.Get(ctx, creatorID)
	if err != nil {
		return models.ScoreSnapshot{}, err
	}

	windowStart := o.now().UTC().Add(-o.window)
	id := social.IdentityOf(creator)

	var (
		window    social.WindowStats
		followers int64
		tips      ledger.Aggregate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		window, err = o.stats.FetchWindowStats(gctx, id, windowStart)
		return err
	})
	g.Go(func() error {
		var err error
		followers, err = o.stats.FetchFollowerCount(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		tips, err = o.ledger.WindowAggregate(gctx, creatorID, windowStart)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("Failed to gather stats")
		return models.ScoreSnapshot{}, classify(op, err)
	}

	breakdown, err := o.engine.Compute(score.Stats{
		Likes:               window.Likes,
		Replies:             window.Replies,
		Reposts:             window.Reposts,
		Quotes:              window.Quotes,
		Views:               window.Views,
		Followers:           followers,
		TipCount:            tips.Count,
		TipAmountMinorUnits: tips.TotalAmount,
	})
	if err != nil {
		return models.ScoreSnapshot{}, apperr.Internal(op, err)
	}

	snap, err := snapshotOf(creatorID, breakdown)
	if err != nil {
		return models.ScoreSnapshot{}, apperr.Internal(op, err)
	}
	snap.CreatedAt = o.now().UTC()

	if err := o.persist(ctx, &snap); err != nil {
		return models.ScoreSnapshot{}, err
	}

	log.Info().
		Float64("meme_score", snap.MemeScore).
		Str("formula_version", snap.FormulaVersion).
		Msg("Recomputed creator score")

	return snap, nil
}

// persist writes the snapshot and then the pointer in one transaction. The
// creator row is locked before the insert so concurrent recomputes of one
// creator commit in snapshot id order and the pointer ends on the newest.
func (o *Orchestrator) persist(ctx context.Context, snap *models.ScoreSnapshot) error {
	const op = "orchestrator.persist"

	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var creator models.Creator
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&creator, snap.CreatorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(op, "creator not found")
			}
			return apperr.Internal(op, err)
		}

		if err := tx.Create(snap).Error; err != nil {
			return apperr.Internal(op, err)
		}

		if err := tx.Model(&models.Creator{}).
			Where("id = ?", snap.CreatorID).
			Update("meme_score", snap.MemeScore).Error; err != nil {
			return apperr.Internal(op, err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordDatabaseOperation("persist_snapshot", "failed")
		return classify(op, err)
	}

	metrics.RecordDatabaseOperation("persist_snapshot", "success")
	return nil
}

func snapshotOf(creatorID uint, b score.Breakdown) (models.ScoreSnapshot, error) {
	weights, err := b.Weights.JSON()
	if err != nil {
		return models.ScoreSnapshot{}, fmt.Errorf("failed to encode weights: %w", err)
	}

	return models.ScoreSnapshot{
		CreatorID:       creatorID,
		FormulaVersion:  b.Weights.Version,
		Weights:         datatypes.JSON(weights),
		EngagementScore: b.EngagementScore,
		ViewScore:       b.ViewScore,
		FollowScore:     b.FollowScore,
		TipScore:        b.TipScore,
		MemeScore:       b.MemeScore,
		Likes:           b.Stats.Likes,
		Replies:         b.Stats.Replies,
		Reposts:         b.Stats.Reposts,
		Quotes:          b.Stats.Quotes,
		Views:           b.Stats.Views,
		Followers:       b.Stats.Followers,
		TipCount:        b.Stats.TipCount,
		TipAmount:       b.Stats.TipAmountMinorUnits,
	}, nil
}

// classify keeps typed errors and wraps anything else. Context errors
// are reported as external fetch failures so callers may retry.
func classify(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.ExternalFetch(op, err)
	}
	return apperr.Internal(op, err)
}
