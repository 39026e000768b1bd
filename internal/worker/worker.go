package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/logger"
	"github.com/wnt/memescore/internal/metrics"
	"github.com/wnt/memescore/internal/models"
)

// Queue is the recompute queue a worker consumes
type Queue interface {
	PopCreator(ctx context.Context) (uint, bool, error)
	PushCreator(ctx context.Context, creatorID uint, notBefore time.Time) error
	SetInFlight(ctx context.Context, creatorID uint, worker string) error
	RemoveInFlight(ctx context.Context, creatorID uint) error
	IncrAttempts(ctx context.Context, creatorID uint) (int64, error)
	ResetAttempts(ctx context.Context, creatorID uint) error
	Length(ctx context.Context) (int64, error)
	InFlight(ctx context.Context) (map[string]string, error)
	RequeueStuck(ctx context.Context, timeout time.Duration) (int, error)
}

// Recomputer recomputes one creator's score
type Recomputer interface {
	RecomputeOne(ctx context.Context, creatorID uint) (models.ScoreSnapshot, error)
}

// Options tune worker polling and retry behavior
type Options struct {
	IdleWait    time.Duration
	ErrorWait   time.Duration
	MaxAttempts int64
	RetryDelay  time.Duration
}

// DefaultOptions are used by the worker binary
var DefaultOptions = Options{
	IdleWait:    5 * time.Second,
	ErrorWait:   5 * time.Second,
	MaxAttempts: 5,
	RetryDelay:  time.Minute,
}

// Worker pops creators off the queue and recomputes them
type Worker struct {
	id         string
	queue      Queue
	recomputer Recomputer
	opts       Options
	logger     zerolog.Logger
	stopped    atomic.Bool
}

// NewWorker creates a new worker instance
func NewWorker(id string, q Queue, r Recomputer, opts Options, baseLogger zerolog.Logger) *Worker {
	return &Worker{
		id:         id,
		queue:      q,
		recomputer: r,
		opts:       opts,
		logger:     logger.WithWorker(baseLogger, id),
	}
}

// Start runs the processing loop until ctx is done or Stop is called
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Worker received shutdown signal")
			return nil
		default:
		}

		if w.stopped.Load() {
			w.logger.Info().Msg("Worker stopped")
			return nil
		}

		processed, err := w.processNext(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to process creator")
			if !sleep(ctx, w.opts.ErrorWait) {
				return nil
			}
			continue
		}
		if !processed && !sleep(ctx, w.opts.IdleWait) {
			return nil
		}
	}
}

// Stop signals the worker to stop after its current creator
func (w *Worker) Stop() {
	w.stopped.Store(true)
	w.logger.Info().Msg("Worker stop signal received")
}

// processNext handles one queued creator. processed is false when the queue had nothing due.
func (w *Worker) processNext(ctx context.Context) (processed bool, err error) {
	creatorID, ok, err := w.queue.PopCreator(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to pop creator from queue: %w", err)
	}
	if !ok {
		return false, nil
	}

	log := logger.WithCreator(w.logger, creatorID)

	if err := w.queue.SetInFlight(ctx, creatorID, w.id); err != nil {
		if requeueErr := w.queue.PushCreator(ctx, creatorID, time.Now()); requeueErr != nil {
			log.Error().Err(requeueErr).Msg("Failed to requeue creator after in-flight error")
		}
		return true, err
	}

	start := time.Now()
	_, err = w.recomputer.RecomputeOne(ctx, creatorID)
	duration := time.Since(start)
	metrics.RecordWorkerTaskDuration("recompute", w.id, duration.Seconds())

	if removeErr := w.queue.RemoveInFlight(ctx, creatorID); removeErr != nil {
		log.Error().Err(removeErr).Msg("Failed to remove creator from in-flight tracking")
	}

	if err == nil {
		if resetErr := w.queue.ResetAttempts(ctx, creatorID); resetErr != nil {
			log.Warn().Err(resetErr).Msg("Failed to reset attempts")
		}
		log.Debug().Dur("duration", duration).Msg("Recompute completed")
		return true, nil
	}

	w.handleFailure(ctx, creatorID, err, log)
	return true, nil
}

// handleFailure requeues retryable failures with a linear backoff until
// MaxAttempts is reached. Other failures are dropped.
func (w *Worker) handleFailure(ctx context.Context, creatorID uint, err error, log zerolog.Logger) {
	if !apperr.Is(err, apperr.KindExternalFetch) {
		log.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("Recompute failed, dropping creator")
		return
	}

	attempts, incrErr := w.queue.IncrAttempts(ctx, creatorID)
	if incrErr != nil {
		log.Error().Err(incrErr).Msg("Failed to count attempt")
		return
	}

	if attempts >= w.opts.MaxAttempts {
		log.Error().Err(err).Int64("attempts", attempts).Msg("Recompute failed too many times, giving up")
		if resetErr := w.queue.ResetAttempts(ctx, creatorID); resetErr != nil {
			log.Warn().Err(resetErr).Msg("Failed to reset attempts")
		}
		return
	}

	notBefore := time.Now().Add(time.Duration(attempts) * w.opts.RetryDelay)
	if pushErr := w.queue.PushCreator(ctx, creatorID, notBefore); pushErr != nil {
		log.Error().Err(pushErr).Msg("Failed to requeue creator")
		return
	}
	log.Warn().Err(err).Int64("attempts", attempts).Time("not_before", notBefore).Msg("Recompute failed, requeued")
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
