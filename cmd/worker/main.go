package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/app"
	"github.com/keyframestudio/stage/internal/config"
	"github.com/keyframestudio/stage/internal/pkg/logger"
	"github.com/keyframestudio/stage/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log.Info("starting worker service")

	// The server bakes synchronously too; both must see the same slots.
	if err := cfg.SharedGuard(); err != nil {
		log.Fatal("invalid worker configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	stack, err := app.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer stack.Close()

	workerServer := worker.NewServer(log, cfg, stack.Bakes)

	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}
