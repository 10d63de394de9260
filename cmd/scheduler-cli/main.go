package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/app"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/config"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Init("scheduler-cli", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	// Logs go to stderr at warn and above so they do not interleave with
	// the prompt.
	level := cfg.LogLevel
	if level == "info" || level == "debug" || level == "trace" {
		level = "warn"
	}
	logger := logging.InitWithWriter(os.Stderr, "scheduler-cli", cfg.Env, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	shell := NewShell(a.Identity, a.Scheduling, os.Stdout)
	if err := shell.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("reading input")
	}
}
