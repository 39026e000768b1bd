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

	"github.com/gin-gonic/gin"
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

	logg := logger.New(cfg.LogLevel)
	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to connect to database")
	}

	a, err := app.New(cfg, db, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := a.Scheduler()
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if sched != nil {
		if err := sched.Start(); err != nil {
			logg.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer sched.Stop()
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           a.Server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go serve(apiServer, "api", stop)
	go serve(metricsServer, "metrics", stop)

	logg.Info().Str("port", cfg.HTTPPort).Str("metrics_port", cfg.MetricsPort).Msg("MemeScore API listening")

	<-ctx.Done()
	logg.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logg.Error().Err(err).Msg("API server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logg.Error().Err(err).Msg("Metrics server shutdown failed")
	}

	logg.Info().Msg("Shutdown complete")
}

func serve(srv *http.Server, name string, stop context.CancelFunc) {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("%s server failed: %v", name, err)
		stop()
	}
}
