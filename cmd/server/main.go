package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/app"
	"github.com/keyframestudio/stage/internal/config"
	"github.com/keyframestudio/stage/internal/handler"
	"github.com/keyframestudio/stage/internal/middleware"
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

	sentryEnabled, err := middleware.InitSentry(middleware.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Server.Env,
		Release:     "stage@" + cfg.Server.Version,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		log.Error("failed to initialize Sentry", zap.Error(err))
	}
	if sentryEnabled {
		defer middleware.FlushSentry(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	stack, err := app.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer stack.Close()

	var enqueuer handler.BakeEnqueuer
	if cfg.Worker.Enabled {
		client := asynq.NewClient(worker.RedisOpt(cfg.Redis))
		defer client.Close()
		enqueuer = worker.NewEnqueuer(client, cfg.Worker)
	}

	srv := fiber.New(fiber.Config{
		AppName:               "stage",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          5 * time.Minute,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: cfg.IsProduction(),
	})

	srv.Use(middleware.RequestID())
	srv.Use(middleware.Logger(log, middleware.HealthSkipper))
	srv.Use(middleware.Recover(log, sentryEnabled))
	srv.Use(middleware.Metrics(middleware.HealthSkipper))

	registerRoutes(srv, stack, enqueuer)

	go func() {
		log.Info("starting server", zap.String("addr", cfg.Addr()), zap.String("env", cfg.Server.Env))
		if err := srv.Listen(cfg.Addr()); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}
