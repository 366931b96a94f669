// Command webserver serves recorded pipeline runs over a JSON API with a
// WebSocket channel for live progress and a Prometheus metrics endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"breachstudy/internal/config"
	"breachstudy/internal/infrastructure"
	"breachstudy/internal/server"
	"breachstudy/internal/store"
	"breachstudy/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	db, err := store.Open(paths.ResultsDB, logger)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer db.Close()

	hub := websocket.NewHub(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg.Server, db, hub, logger).Start(ctx)
}
