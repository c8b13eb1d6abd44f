// Package app wires the bake stack shared by the server and worker
// binaries: physics source, bake guard, optional storage and the services
// on top of them.
package app

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/config"
	"github.com/keyframestudio/stage/internal/physics"
	"github.com/keyframestudio/stage/internal/pkg/circuitbreaker"
	"github.com/keyframestudio/stage/internal/pkg/database"
	"github.com/keyframestudio/stage/internal/repository/objectstore"
	pgrepo "github.com/keyframestudio/stage/internal/repository/postgres"
	"github.com/keyframestudio/stage/internal/service"
)

// Stack holds the long-lived dependencies of a process
type Stack struct {
	Config *config.Config
	Logger *zap.Logger

	Source physics.Source
	Breakers func() []circuitbreaker.Stat

	// Optional backends; nil when not configured
	Redis    *database.RedisDB
	Postgres *database.PostgresDB
	MinIO    *minio.Client

	Animations *objectstore.AnimationRepository
	Runs       *pgrepo.BakeRunRepository

	Bakes   *service.BakeService
	Cameras *service.CameraService
}

// NewSource builds the physics source: a recording when one is configured,
// otherwise the Rapier HTTP client. breakers is nil for recordings.
func NewSource(cfg config.PhysicsConfig, logger *zap.Logger) (physics.Source, func() []circuitbreaker.Stat, error) {
	if cfg.RecordingPath != "" {
		src, err := physics.LoadRecording(cfg.RecordingPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("replaying recorded physics", zap.String("path", cfg.RecordingPath))
		return src, nil, nil
	}

	client, err := physics.NewRapierClient(physics.RapierConfig{
		BaseURL:     cfg.URL,
		Timeout:     cfg.Timeout,
		MaxFailures: cfg.MaxFailures,
		CoolDown:    cfg.CoolDown,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using rapier physics service", zap.String("url", cfg.URL))
	return client, client.BreakerStats, nil
}

// New connects every configured backend and builds the services. On error
// the backends opened so far are closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Stack, err error) {
	s := &Stack{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.Source, s.Breakers, err = NewSource(cfg.Physics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize physics source: %w", err)
	}

	var guard service.BakeGuard
	if cfg.Bake.Guard == config.GuardRedis {
		s.Redis, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		guard = service.NewRedisGuard(s.Redis.Client, cfg.Bake.GuardTTL, logger)
	}

	s.Bakes = service.NewBakeService(logger, s.Source, guard, service.BakeConfig{
		DefaultFPS:   cfg.Bake.DefaultFPS,
		Concurrency:  cfg.Bake.Concurrency,
		FetchTimeout: cfg.Bake.FetchTimeout,
		Timeout:      cfg.Bake.Timeout,
	})
	s.Cameras = service.NewCameraService(logger)

	if cfg.MinIO.Enabled {
		s.MinIO, err = database.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		s.Animations = objectstore.NewAnimationRepository(s.MinIO, cfg.MinIO.Bucket)
		s.Bakes.WithAnimationStore(s.Animations)
	}

	if cfg.Postgres.Enabled {
		s.Postgres, err = database.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		s.Runs = pgrepo.NewBakeRunRepository(s.Postgres)
		if err := s.Runs.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare bake_runs: %w", err)
		}
		s.Bakes.WithRunStore(s.Runs)
	}

	return s, nil
}

// Close releases every backend connection
func (s *Stack) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
