// Package app assembles the MemeScore components from configuration. The
// binaries under cmd/ differ only in which of them they run.
package app

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/annotation"
	"github.com/wnt/memescore/internal/api"
	"github.com/wnt/memescore/internal/chain"
	"github.com/wnt/memescore/internal/config"
	"github.com/wnt/memescore/internal/ledger"
	"github.com/wnt/memescore/internal/orchestrator"
	"github.com/wnt/memescore/internal/queue"
	"github.com/wnt/memescore/internal/repository"
	"github.com/wnt/memescore/internal/scheduler"
	"github.com/wnt/memescore/internal/score"
	"github.com/wnt/memescore/internal/social"
	"github.com/wnt/memescore/internal/worker"
	"gorm.io/gorm"
)

// App holds the wired components. Queue and Pool are nil when not configured.
type App struct {
	Config       config.Config
	DB           *gorm.DB
	Ledger       *ledger.Ledger
	Stats        *social.Aggregator
	Annotator    annotation.Annotator
	Orchestrator *orchestrator.Orchestrator
	Queue        *queue.Client
	Pool         *chain.Pool
	Logger       zerolog.Logger
}

// New wires every component over an open database
func New(cfg config.Config, db *gorm.DB, log zerolog.Logger) (*App, error) {
	engine, err := score.NewEngine(cfg.Weights)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Ledger:    ledger.New(db),
		Annotator: annotation.Disabled{},
		Logger:    log,
	}

	client := social.NewHTTPClient(social.HTTPConfig{
		BaseURL:   cfg.SocialBaseURL,
		Timeout:   cfg.SocialTimeout,
		RateLimit: cfg.SocialRateLimit,
	})
	a.Stats = social.NewAggregator(client, cfg.SocialPageSize, log)

	if cfg.AIBackendURL != "" {
		a.Annotator = annotation.NewClient(cfg.AIBackendURL, cfg.AITimeout, log)
	}

	var opts []orchestrator.Option
	if len(cfg.RPCEndpoints) > 0 {
		a.Pool, err = chain.NewPool(cfg.RPCEndpoints, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create RPC pool: %w", err)
		}
		verifier, err := chain.NewVerifier(a.Pool, cfg.TipContractAddress, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithVerifier(verifier))
	}

	a.Orchestrator = orchestrator.New(db, a.Stats, a.Ledger, engine, orchestrator.Config{
		Window:      cfg.ScoreWindow,
		Concurrency: cfg.RecomputeConcurrency,
	}, log, opts...)

	if cfg.QueueEnabled() {
		a.Queue, err = queue.NewClient(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("formula_version", cfg.Weights.Version).
		Bool("queue", a.Queue != nil).
		Bool("verify_receipts", a.Pool != nil).
		Bool("annotations", cfg.AIBackendURL != "").
		Msg("Components wired")

	return a, nil
}

// Server builds the HTTP API over the wired components
func (a *App) Server() *api.Server {
	deps := api.Deps{
		DB:        a.DB,
		Scorer:    a.Orchestrator,
		Ledger:    a.Ledger,
		Annotator: a.Annotator,
		Tokens:    a.Stats,
		Window:    a.Config.ScoreWindow,
		Logger:    a.Logger,
	}
	if a.Queue != nil {
		deps.Queue = a.Queue
	}
	return api.NewServer(deps)
}

// Scheduler builds the cron trigger, or returns nil when RECOMPUTE_CRON is unset
func (a *App) Scheduler() (*scheduler.RecomputeScheduler, error) {
	if a.Config.RecomputeCron == "" {
		return nil, nil
	}

	var opts []scheduler.Option
	if a.Queue != nil {
		opts = append(opts, scheduler.WithQueue(repository.NewCreators(a.DB), a.Queue))
	}
	return scheduler.New(a.Config.RecomputeCron, a.Orchestrator, a.Logger, opts...)
}

// WorkerManager builds the queue worker pool. It requires REDIS_URL.
func (a *App) WorkerManager() (*worker.Manager, error) {
	if a.Queue == nil {
		return nil, fmt.Errorf("REDIS_URL is required to run workers")
	}

	var opts []worker.ManagerOption
	if a.Pool != nil {
		opts = append(opts, worker.WithHealthyEndpoints(a.Pool.HealthyEndpointCount))
	}
	cfg := worker.DefaultManagerConfig(a.Config.MinWorkers, a.Config.MaxWorkers)
	return worker.NewManager(cfg, a.Queue, a.Orchestrator, a.Logger, opts...), nil
}

// Close releases the queue connection and the database pool
func (a *App) Close() error {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close queue")
		}
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
