package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wnt/memescore/internal/app"
	"github.com/wnt/memescore/internal/config"
	"github.com/wnt/memescore/internal/database"
	"github.com/wnt/memescore/internal/logger"
)

func main() {
	envFile := flag.String("envFile", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.NewService("memescore-worker", cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to connect to database")
	}

	a, err := app.New(cfg, db, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer a.Close()

	manager, err := a.WorkerManager()
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to create worker manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Queue.Ping(r.Context()); err != nil {
			http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	if err := manager.Start(); err != nil {
		logg.Fatal().Err(err).Msg("Failed to start worker manager")
	}

	<-ctx.Done()
	logg.Info().Msg("Shutting down workers...")

	if err := manager.Stop(); err != nil {
		logg.Error().Err(err).Msg("Worker manager shutdown failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logg.Error().Err(err).Msg("Metrics server shutdown failed")
	}
}
