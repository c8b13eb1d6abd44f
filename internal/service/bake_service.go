package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/physics"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
	"github.com/keyframestudio/stage/internal/pkg/logger"
	"github.com/keyframestudio/stage/internal/pkg/metrics"
	"github.com/keyframestudio/stage/internal/trajectory"
	"github.com/keyframestudio/stage/internal/validator"
)

// AnimationStore persists baked tracks
type AnimationStore interface {
	Save(ctx context.Context, sceneID string, anim *domain.BakedAnimation) (string, error)
	Get(ctx context.Context, sceneID, objectID string) (*domain.BakedAnimation, error)
	Delete(ctx context.Context, sceneID, objectID string) error
}

// BakeRunStore persists bake run records
type BakeRunStore interface {
	Create(ctx context.Context, run *domain.BakeRun) error
	Finish(ctx context.Context, run *domain.BakeRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BakeRun, error)
	ListByScene(ctx context.Context, sceneID string, limit int) ([]*domain.BakeRun, error)
}

// BakeConfig tunes the orchestrator
type BakeConfig struct {
	// DefaultFPS replaces an unset request fps.
	DefaultFPS int
	// Concurrency bounds in-flight fetches per bake.
	Concurrency int
	// FetchTimeout bounds each body's fetch. Zero leaves only the caller's
	// context in charge.
	FetchTimeout time.Duration
	// Timeout bounds the whole bake, guard wait included. A bake that runs
	// out of time ends like a canceled one.
	Timeout time.Duration
}

// DefaultBakeConfig returns the orchestrator defaults
func DefaultBakeConfig() BakeConfig {
	return BakeConfig{
		DefaultFPS:   domain.DefaultFPS,
		Concurrency:  8,
		FetchTimeout: 30 * time.Second,
		Timeout:      5 * time.Minute,
	}
}

const (
	persistTimeout = 30 * time.Second

	defaultRunLimit = 20
	maxRunLimit     = 100
)

// BakeService bakes physics trajectories into keyframe tracks
type BakeService struct {
	logger     *zap.Logger
	source     physics.Source
	guard      BakeGuard
	config     BakeConfig
	animations AnimationStore
	runs       BakeRunStore
}

// NewBakeService creates a new bake service
func NewBakeService(
	logger *zap.Logger,
	source physics.Source,
	guard BakeGuard,
	config BakeConfig,
) *BakeService {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultBakeConfig().Concurrency
	}
	return &BakeService{
		logger: logger,
		source: source,
		guard:  guard,
		config: config,
	}
}

// WithAnimationStore enables persistence of baked tracks
func (s *BakeService) WithAnimationStore(store AnimationStore) *BakeService {
	s.animations = store
	return s
}

// WithRunStore enables bake run records
func (s *BakeService) WithRunStore(runs BakeRunStore) *BakeService {
	s.runs = runs
	return s
}

// bakeHooks run while the guard is held.
type bakeHooks struct {
	started  func(req *domain.BakeRequest)
	finished func(res *domain.BakeResult, err error) error
}

// Bake fetches and resamples every bound body of req. Bodies that fail are
// reported in the result's status map and left out of its animations. When
// ctx ends mid-bake the partial result is returned with a CANCELED error.
func (s *BakeService) Bake(ctx context.Context, req *domain.BakeRequest) (*domain.BakeResult, error) {
	return s.bake(ctx, req, bakeHooks{})
}

// BakeAndPersist bakes, stores every successful track and records the run.
// Stores that are not configured are skipped.
func (s *BakeService) BakeAndPersist(ctx context.Context, req *domain.BakeRequest) (*domain.BakeResult, *domain.BakeRun, error) {
	var run *domain.BakeRun
	var persistErr error

	hooks := bakeHooks{
		started: func(r *domain.BakeRequest) {
			run = domain.NewBakeRun(r)
			if s.runs == nil {
				return
			}
			if err := s.runs.Create(ctx, run); err != nil {
				s.logger.Warn("failed to record bake run", zap.String("run_id", run.ID.String()), zap.Error(err))
			}
		},
		finished: func(res *domain.BakeResult, bakeErr error) error {
			// A canceled bake still records what it managed to produce.
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
			defer cancel()

			persistErr = s.persist(pctx, res)
			outcome := bakeErr
			if outcome == nil {
				outcome = persistErr
			}
			run.Complete(res, outcome)
			if s.runs != nil {
				if err := s.runs.Finish(pctx, run); err != nil {
					s.logger.Warn("failed to finish bake run", zap.String("run_id", run.ID.String()), zap.Error(err))
				}
			}
			return persistErr
		},
	}

	res, err := s.bake(ctx, req, hooks)
	if err != nil {
		return res, run, err
	}
	return res, run, persistErr
}

func (s *BakeService) persist(ctx context.Context, res *domain.BakeResult) error {
	if s.animations == nil || res == nil {
		return nil
	}
	var errs []error
	for _, id := range res.Succeeded() {
		anim := res.Animations[id]
		key, err := s.animations.Save(ctx, res.SceneID, anim)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to store %s: %w", id, err))
			continue
		}
		anim.DataPath = key
	}
	if len(errs) > 0 {
		return apperrors.Internal("failed to store baked animations").WithError(errors.Join(errs...))
	}
	return nil
}

func (s *BakeService) bake(ctx context.Context, in *domain.BakeRequest, hooks bakeHooks) (*domain.BakeResult, error) {
	if in == nil {
		return nil, apperrors.Validation("bake request is required")
	}
	if err := validator.ValidateApp(in); err != nil {
		return nil, err
	}
	req := *in
	if req.FPS == 0 && s.config.DefaultFPS > 0 {
		req.FPS = s.config.DefaultFPS
	}
	req.Normalize()
	if err := domain.CheckGrid(req.Duration, req.FPS); err != nil {
		return nil, err
	}
	bindings, err := req.Bindings()
	if err != nil {
		return nil, err
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	keys := make([]GuardKey, len(bindings))
	for i, b := range bindings {
		keys[i] = GuardKey{SceneID: req.SceneID, ObjectID: b.ObjectID}
	}
	release, err := s.guard.Acquire(ctx, keys)
	if err != nil {
		if apperrors.IsBakeInProgress(err) {
			metrics.RecordBakeRejected()
		}
		return nil, err
	}
	defer release()

	metrics.BakeStarted()
	defer metrics.BakeFinished()
	start := time.Now()

	log := s.logger.With(logger.BakeFields(req.SceneID, req.SimulationID)...)
	log.Info("bake started", zap.Int("bodies", len(bindings)), zap.Int("fps", req.FPS), zap.Float64("duration", req.Duration))
	if hooks.started != nil {
		hooks.started(&req)
	}

	res := &domain.BakeResult{
		SceneID:      req.SceneID,
		SimulationID: req.SimulationID,
		FPS:          req.FPS,
		Duration:     req.Duration,
		Animations:   make(map[string]*domain.BakedAnimation, len(bindings)),
		Status:       make(map[string]domain.BodyStatus, len(bindings)),
	}
	tr := physics.TimeRange{Duration: req.Duration, FPS: req.FPS}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for _, b := range bindings {
		g.Go(func() error {
			status, anim := s.bakeBody(ctx, log, b, tr)
			metrics.RecordBakeBody(string(status.State))

			mu.Lock()
			defer mu.Unlock()
			res.Status[b.ObjectID] = status
			if anim != nil {
				res.Animations[b.ObjectID] = anim
			}
			return nil
		})
	}
	_ = g.Wait()

	var bakeErr error
	if err := ctx.Err(); err != nil {
		bakeErr = apperrors.Canceled(err)
	}
	metrics.RecordBakeDuration(time.Since(start))
	log.Info("bake finished",
		zap.Int("succeeded", len(res.Succeeded())),
		zap.Int("failed", len(res.Failed())),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(bakeErr),
	)

	if hooks.finished != nil {
		if err := hooks.finished(res, bakeErr); err != nil && bakeErr == nil {
			log.Error("failed to persist bake", zap.Error(err))
		}
	}
	return res, bakeErr
}

// bakeBody never returns an error; failures, panics included, become the
// body's status.
func (s *BakeService) bakeBody(ctx context.Context, log *zap.Logger, b domain.BodyBinding, tr physics.TimeRange) (status domain.BodyStatus, anim *domain.BakedAnimation) {
	status = domain.BodyStatus{
		ObjectID: b.ObjectID,
		BodyID:   b.BodyID,
		Binding:  domain.FormatBinding(b.SimulationID, b.BodyID),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("body bake panicked",
				zap.String("object_id", b.ObjectID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			status, anim = failed(status, apperrors.Internal(fmt.Sprintf("bake of %s panicked: %v", b.ObjectID, r))), nil
		}
	}()
	if err := ctx.Err(); err != nil {
		return canceled(status, err), nil
	}

	fctx := ctx
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	raw, err := s.source.FetchTrajectory(fctx, b.SimulationID, b.BodyID, tr)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(status, ctx.Err()), nil
		}
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && apperrors.GetAppError(err) == nil {
			err = apperrors.TransientFetch(fmt.Sprintf("fetch for body %s timed out after %s", b.BodyID, s.config.FetchTimeout)).WithError(err)
		}
		log.Warn("body fetch failed",
			zap.String("object_id", b.ObjectID),
			zap.String("body_id", b.BodyID),
			zap.String("code", apperrors.GetCode(err)),
			zap.Error(err),
		)
		return failed(status, err), nil
	}

	anim, err = trajectory.Resample(b.ObjectID, raw, tr.FPS, tr.Duration)
	if err != nil {
		log.Warn("body resample failed", zap.String("object_id", b.ObjectID), zap.Error(err))
		return failed(status, err), nil
	}
	anim.Source = b.SimulationID

	status.State = domain.BodyStateOK
	status.Frames = len(anim.Frames)
	log.Debug("body baked", zap.String("object_id", b.ObjectID), zap.Int("frames", status.Frames))
	return status, anim
}

func failed(s domain.BodyStatus, err error) domain.BodyStatus {
	s.State = domain.BodyStateFailed
	s.ErrorCode = apperrors.GetCode(err)
	s.Message = err.Error()
	s.Retryable = apperrors.IsRetryable(err)
	return s
}

func canceled(s domain.BodyStatus, err error) domain.BodyStatus {
	s.State = domain.BodyStateCanceled
	s.ErrorCode = apperrors.CodeCanceled
	s.Message = err.Error()
	s.Retryable = true
	return s
}

// GetRun returns a recorded bake run
func (s *BakeService) GetRun(ctx context.Context, id uuid.UUID) (*domain.BakeRun, error) {
	if s.runs == nil {
		return nil, apperrors.Unavailable("bake run store")
	}
	return s.runs.GetByID(ctx, id)
}

// GetAnimation returns a stored track
func (s *BakeService) GetAnimation(ctx context.Context, sceneID, objectID string) (*domain.BakedAnimation, error) {
	if s.animations == nil {
		return nil, apperrors.Unavailable("animation store")
	}
	return s.animations.Get(ctx, sceneID, objectID)
}

// ListRuns returns a scene's most recent runs, newest first. limit is
// clamped to [1, 100]; zero means 20.
func (s *BakeService) ListRuns(ctx context.Context, sceneID string, limit int) ([]*domain.BakeRun, error) {
	if s.runs == nil {
		return nil, apperrors.Unavailable("bake run store")
	}
	switch {
	case limit <= 0:
		limit = defaultRunLimit
	case limit > maxRunLimit:
		limit = maxRunLimit
	}
	return s.runs.ListByScene(ctx, sceneID, limit)
}

// DeleteAnimation removes a stored track
func (s *BakeService) DeleteAnimation(ctx context.Context, sceneID, objectID string) error {
	if s.animations == nil {
		return apperrors.Unavailable("animation store")
	}
	return s.animations.Delete(ctx, sceneID, objectID)
}
