package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/config"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/infrastructure/container"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependency injection container
	app, err := container.NewContainer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	log := app.Log
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("Error closing application", "error", err)
		}
	}()

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.Start()
	}()

	log.Info("Server started",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"seeker", cfg.Match.SeekerGender,
		"counterpart", cfg.Match.CounterpartGender,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("Server error", "error", err)
		}
	}

	// Graceful shutdown, bounded by SERVER_SHUTDOWN_TIMEOUT
	if err := app.Server.Shutdown(context.Background()); err != nil {
		log.Error("Server shutdown error", "error", err)
		return
	}

	log.Info("Server exited properly")
}
