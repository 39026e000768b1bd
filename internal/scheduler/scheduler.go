// Package scheduler triggers periodic recomputes of every creator on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/orchestrator"
)

// BatchRecomputer recomputes every creator synchronously
type BatchRecomputer interface {
	RecomputeAll(ctx context.Context) (orchestrator.Report, error)
}

// CreatorLister lists the ids of every creator
type CreatorLister interface {
	ListIDs(ctx context.Context) ([]uint, error)
}

// Enqueuer schedules creators on the recompute queue
type Enqueuer interface {
	PushCreators(ctx context.Context, creatorIDs []uint) error
}

// RecomputeScheduler runs a recompute pass on every cron tick. With an
// enqueuer the pass only enqueues creators for the worker pool; without one
// it recomputes them in-process.
type RecomputeScheduler struct {
	cron     *cron.Cron
	schedule string
	batch    BatchRecomputer
	creators CreatorLister
	queue    Enqueuer
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// Option customizes a RecomputeScheduler
type Option func(*RecomputeScheduler)

// WithQueue routes each pass through the recompute queue
func WithQueue(creators CreatorLister, q Enqueuer) Option {
	return func(s *RecomputeScheduler) {
		s.creators = creators
		s.queue = q
	}
}

// WithTimeout bounds one pass
func WithTimeout(d time.Duration) Option {
	return func(s *RecomputeScheduler) {
		s.timeout = d
	}
}

// New builds a scheduler for a standard five-field cron expression
func New(schedule string, batch BatchRecomputer, logger zerolog.Logger, opts ...Option) (*RecomputeScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid RECOMPUTE_CRON %q: %w", schedule, err)
	}

	log := logger.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: log}
	s := &RecomputeScheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		schedule: schedule,
		batch:    batch,
		timeout:  time.Hour,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the recompute job and starts the cron runner
func (s *RecomputeScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Bool("queued", s.queue != nil).Msg("Recompute scheduler started")
	return nil
}

// Stop waits for a running pass to finish
func (s *RecomputeScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Recompute scheduler stopped")
}

// LastRun returns when the last pass started, zero if none has
func (s *RecomputeScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *RecomputeScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled recompute failed")
	}
}

// RunOnce performs one pass immediately
func (s *RecomputeScheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	if s.queue != nil {
		ids, err := s.creators.ListIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list creators: %w", err)
		}
		if err := s.queue.PushCreators(ctx, ids); err != nil {
			return err
		}
		s.logger.Info().Int("creators", len(ids)).Msg("Enqueued scheduled recompute")
		return nil
	}

	report, err := s.batch.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Str("duration", report.Duration).
		Msg("Scheduled recompute completed")
	return nil
}

// cronLogger adapts zerolog to cron's logger interface
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
