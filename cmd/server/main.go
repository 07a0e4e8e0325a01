package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nutridash/internal/app"
	"nutridash/internal/platform/config"
	"nutridash/internal/platform/logger"
)

// main wires dependencies from the environment and serves until SIGINT or
// SIGTERM. Business logic lives in internal/nutrition.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nutridash:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to build dependencies", "error", err)
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.ErrorContext(context.Background(), "failed to close dependencies", "error", err)
		}
	}()

	srv, err := app.NewServer(deps)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
