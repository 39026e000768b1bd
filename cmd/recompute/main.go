package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wnt/memescore/internal/app"
	"github.com/wnt/memescore/internal/config"
	"github.com/wnt/memescore/internal/database"
	"github.com/wnt/memescore/internal/logger"
	"github.com/wnt/memescore/internal/repository"
)

func main() {
	envFile := flag.String("envFile", ".env", "Path to .env file")
	creatorID := flag.Uint("creator", 0, "Recompute a single creator by id")
	all := flag.Bool("all", false, "Recompute every creator")
	enqueue := flag.Bool("enqueue", false, "With -all, push creators onto the recompute queue instead of recomputing inline")
	flag.Parse()

	os.Exit(run(*envFile, *creatorID, *all, *enqueue))
}

func run(envFile string, creatorID uint, all, enqueue bool) int {
	if (creatorID == 0) == !all {
		fmt.Println("Usage: recompute -creator <id> | -all [-enqueue]")
		return 2
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	logg := logger.NewService("memescore-recompute", cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		logg.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}

	a, err := app.New(cfg, db, logg)
	if err != nil {
		logg.Error().Err(err).Msg("Failed to initialize components")
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	var out interface{}
	switch {
	case creatorID != 0:
		snap, err := a.Orchestrator.RecomputeOne(ctx, creatorID)
		if err != nil {
			logg.Error().Err(err).Uint("creator_id", creatorID).Msg("Recompute failed")
			return 1
		}
		out = snap

	case enqueue:
		if a.Queue == nil {
			logg.Error().Msg("REDIS_URL is required with -enqueue")
			return 2
		}
		ids, err := repository.NewCreators(a.DB).ListIDs(ctx)
		if err != nil {
			logg.Error().Err(err).Msg("Failed to list creators")
			return 1
		}
		if err := a.Queue.PushCreators(ctx, ids); err != nil {
			logg.Error().Err(err).Msg("Failed to enqueue creators")
			return 1
		}
		out = map[string]int{"enqueued": len(ids)}

	default:
		report, err := a.Orchestrator.RecomputeAll(ctx)
		if err != nil {
			logg.Error().Err(err).Msg("Recompute failed")
			return 1
		}
		out = report
		if len(report.Failed) > 0 {
			exitCode = 1
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logg.Error().Err(err).Msg("Failed to write result")
		return 1
	}
	return exitCode
}
