package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ManagerConfig sizes and paces the worker pool
type ManagerConfig struct {
	MinWorkers        int
	MaxWorkers        int
	CreatorsPerWorker int
	ScaleInterval     time.Duration
	StuckInterval     time.Duration
	StuckTimeout      time.Duration
	MonitorInterval   time.Duration
	ShutdownTimeout   time.Duration
	Worker            Options
}

// DefaultManagerConfig returns the production pacing for the given pool bounds
func DefaultManagerConfig(minWorkers, maxWorkers int) ManagerConfig {
	return ManagerConfig{
		MinWorkers:        minWorkers,
		MaxWorkers:        maxWorkers,
		CreatorsPerWorker: 10,
		ScaleInterval:     30 * time.Second,
		StuckInterval:     5 * time.Minute,
		StuckTimeout:      15 * time.Minute,
		MonitorInterval:   time.Minute,
		ShutdownTimeout:   30 * time.Second,
		Worker:            DefaultOptions,
	}
}

// Stats is a point-in-time view of the manager
type Stats struct {
	ActiveWorkers    int   `json:"active_workers"`
	QueueLength      int64 `json:"queue_length"`
	InFlight         int   `json:"in_flight"`
	HealthyEndpoints int   `json:"healthy_endpoints"`
	MinWorkers       int   `json:"min_workers"`
	MaxWorkers       int   `json:"max_workers"`
}

// Manager manages a dynamic pool of recompute workers
type Manager struct {
	config     ManagerConfig
	queue      Queue
	recomputer Recomputer
	healthy    func() int
	workers    []*Worker
	logger     zerolog.Logger
	mutex      sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	eg         *errgroup.Group
	stopped    bool
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithHealthyEndpoints reports the healthy RPC endpoint count in monitoring output
func WithHealthyEndpoints(count func() int) ManagerOption {
	return func(m *Manager) {
		m.healthy = count
	}
}

// NewManager creates a new worker manager
func NewManager(cfg ManagerConfig, q Queue, r Recomputer, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	if cfg.CreatorsPerWorker < 1 {
		cfg.CreatorsPerWorker = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)

	m := &Manager{
		config:     cfg,
		queue:      q,
		recomputer: r,
		workers:    make([]*Worker, 0),
		logger:     logger.With().Str("component", "worker_manager").Logger(),
		ctx:        egCtx,
		cancel:     cancel,
		eg:         eg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the initial workers and the background loops
func (m *Manager) Start() error {
	m.logger.Info().
		Int("min_workers", m.config.MinWorkers).
		Int("max_workers", m.config.MaxWorkers).
		Msg("Starting worker manager")

	if err := m.adjustWorkerCount(); err != nil {
		return fmt.Errorf("failed to start initial workers: %w", err)
	}

	m.eg.Go(m.runScalingLoop)
	m.eg.Go(m.runStuckRecovery)
	m.eg.Go(m.runQueueMonitoring)

	m.logger.Info().Msg("Worker manager started successfully")
	return nil
}

// Stop gracefully shuts down the worker manager
func (m *Manager) Stop() error {
	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return nil
	}
	m.stopped = true
	m.mutex.Unlock()

	m.logger.Info().Msg("Stopping worker manager...")
	m.cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.eg.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error().Err(err).Msg("Error during worker shutdown")
		}
	case <-time.After(m.config.ShutdownTimeout):
		m.logger.Warn().Msg("Worker shutdown timed out")
	}

	m.mutex.Lock()
	m.workers = nil
	m.mutex.Unlock()

	metrics.WorkersActive.Set(0)
	m.logger.Info().Msg("Worker manager stopped")
	return nil
}

func (m *Manager) runScalingLoop() error {
	return m.every(m.config.ScaleInterval, func() {
		if err := m.adjustWorkerCount(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to adjust worker count")
		}
	})
}

func (m *Manager) runStuckRecovery() error {
	return m.every(m.config.StuckInterval, func() {
		requeued, err := m.queue.RequeueStuck(m.ctx, m.config.StuckTimeout)
		if err != nil {
			m.logger.Error().Err(err).Msg("Failed to requeue stuck creators")
			return
		}
		if requeued > 0 {
			m.logger.Warn().Int("requeued", requeued).Msg("Requeued stuck creators")
		}
	})
}

func (m *Manager) runQueueMonitoring() error {
	return m.every(m.config.MonitorInterval, func() {
		stats, err := m.Stats(m.ctx)
		if err != nil {
			m.logger.Error().Err(err).Msg("Failed to collect queue stats")
			return
		}
		m.logger.Info().
			Int64("queue_length", stats.QueueLength).
			Int("in_flight", stats.InFlight).
			Int("active_workers", stats.ActiveWorkers).
			Int("healthy_endpoints", stats.HealthyEndpoints).
			Msg("Queue monitoring stats")
	})
}

func (m *Manager) every(interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}

// adjustWorkerCount scales workers based on queue length
func (m *Manager) adjustWorkerCount() error {
	queueLength, err := m.queue.Length(m.ctx)
	if err != nil {
		return fmt.Errorf("failed to get queue length: %w", err)
	}
	metrics.RecomputeQueueLength.Set(float64(queueLength))

	desired := m.calculateDesiredWorkers(int(queueLength))

	m.mutex.Lock()
	current := len(m.workers)
	m.mutex.Unlock()

	if desired == current {
		return nil
	}

	m.logger.Info().
		Int("current_workers", current).
		Int("desired_workers", desired).
		Int64("queue_length", queueLength).
		Msg("Adjusting worker count")

	if desired > current {
		m.addWorkers(desired - current)
	} else {
		m.removeWorkers(current - desired)
	}
	return nil
}

// calculateDesiredWorkers runs one worker per CreatorsPerWorker queued creators, within bounds
func (m *Manager) calculateDesiredWorkers(queueLength int) int {
	desired := queueLength / m.config.CreatorsPerWorker
	if desired < m.config.MinWorkers {
		desired = m.config.MinWorkers
	}
	if desired > m.config.MaxWorkers {
		desired = m.config.MaxWorkers
	}
	return desired
}

func (m *Manager) addWorkers(count int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < count; i++ {
		workerID := "worker-" + uuid.NewString()[:8]
		w := NewWorker(workerID, m.queue, m.recomputer, m.config.Worker, m.logger)

		m.eg.Go(func() error {
			return w.Start(m.ctx)
		})
		m.workers = append(m.workers, w)

		m.logger.Debug().
			Str("worker_id", workerID).
			Int("total_workers", len(m.workers)).
			Msg("Added worker")
	}

	metrics.WorkersActive.Set(float64(len(m.workers)))
	m.logger.Info().
		Int("added", count).
		Int("total_workers", len(m.workers)).
		Msg("Workers added")
}

// removeWorkers signals the newest workers to stop after their current creator
func (m *Manager) removeWorkers(count int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if count > len(m.workers) {
		count = len(m.workers)
	}

	for _, w := range m.workers[len(m.workers)-count:] {
		w.Stop()
	}
	m.workers = m.workers[:len(m.workers)-count]

	metrics.WorkersActive.Set(float64(len(m.workers)))
	m.logger.Info().
		Int("removed", count).
		Int("remaining_workers", len(m.workers)).
		Msg("Workers removed")
}

// Stats returns current manager statistics
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	m.mutex.RLock()
	active := len(m.workers)
	m.mutex.RUnlock()

	queueLength, err := m.queue.Length(ctx)
	if err != nil {
		return Stats{}, err
	}
	inFlight, err := m.queue.InFlight(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ActiveWorkers: active,
		QueueLength:   queueLength,
		InFlight:      len(inFlight),
		MinWorkers:    m.config.MinWorkers,
		MaxWorkers:    m.config.MaxWorkers,
	}
	if m.healthy != nil {
		stats.HealthyEndpoints = m.healthy()
	}
	return stats, nil
}
