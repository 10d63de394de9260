package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/app"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/config"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Init("prune-worker", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Init("prune-worker", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Msg("prune-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	runOnce(rootCtx, logger, a.Scheduling)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping prune worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, a.Scheduling)
		}
	}
}

// runOnce drops availability dated before today (UTC). Slots on today or
// later are never touched.
func runOnce(ctx context.Context, logger zerolog.Logger, svc *scheduling.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	removed, err := svc.PruneAvailability(runCtx, start.UTC())
	if err != nil {
		logger.Error().Err(err).Msg("prune run error")
		return
	}
	logger.Info().
		Int64("removed", removed).
		Dur("took", time.Since(start)).
		Msg("prune run complete")
}
