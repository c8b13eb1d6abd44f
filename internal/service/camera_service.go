package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/camera"
	"github.com/keyframestudio/stage/internal/domain"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
	"github.com/keyframestudio/stage/internal/pkg/metrics"
)

// CameraEvaluation is the outcome of evaluating one shot at one scene time.
type CameraEvaluation struct {
	Active    bool              `json:"active"`
	ShotTime  camera.ShotTime   `json:"shot_time"`
	Transform *camera.Transform `json:"transform,omitempty"`
	Chase     camera.ChaseState `json:"chase_state"`
}

// CameraService evaluates and samples shots
type CameraService struct {
	logger *zap.Logger
}

// NewCameraService creates a new camera service
func NewCameraService(logger *zap.Logger) *CameraService {
	return &CameraService{logger: logger}
}

// Evaluate computes the camera pose of shot at sceneTime. An inactive shot
// is not an error; the result reports Active=false and keeps chase as is.
func (s *CameraService) Evaluate(shot domain.Shot, world domain.WorldState, sceneTime float64, chase camera.ChaseState) (*CameraEvaluation, error) {
	mode := modeOf(shot)
	if err := shot.Validate(); err != nil {
		metrics.RecordCameraEvaluation(mode, "invalid")
		return nil, err
	}

	st, active := camera.MapShotTime(shot, sceneTime)
	tr, next, _, err := camera.EvaluateShot(shot, world, sceneTime, chase)
	if err != nil {
		metrics.RecordCameraEvaluation(mode, "error")
		s.logger.Debug("camera evaluation failed",
			zap.String("shot_id", shot.ID),
			zap.Float64("time", sceneTime),
			zap.Error(err),
		)
		return nil, err
	}

	out := &CameraEvaluation{Active: active, ShotTime: st, Chase: next}
	if active {
		out.Transform = &tr
		metrics.RecordCameraEvaluation(mode, "ok")
	} else {
		metrics.RecordCameraEvaluation(mode, "inactive")
	}
	return out, nil
}

// Sample evaluates shot on the 1/fps grid over its active interval.
func (s *CameraService) Sample(shot domain.Shot, worldAt camera.WorldAt, fps int) ([]camera.Frame, error) {
	mode := modeOf(shot)
	frames, err := camera.SampleShot(shot, worldAt, fps)
	if err != nil {
		metrics.RecordCameraEvaluation(mode, "error")
		return nil, err
	}
	metrics.RecordCameraEvaluation(mode, "ok")
	return frames, nil
}

// Preview emits sampled frames paced at the fps cadence until the shot ends,
// emit fails or ctx is done.
func (s *CameraService) Preview(ctx context.Context, shot domain.Shot, worldAt camera.WorldAt, fps int, emit func(camera.Frame) error) error {
	if err := shot.Validate(); err != nil {
		return err
	}
	if err := domain.CheckGrid(shot.Duration(), fps); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var chase camera.ChaseState
	for i := 0; ; i++ {
		t := shot.Start + float64(i)/float64(fps)
		if t >= shot.End {
			return nil
		}
		tr, next, _, err := camera.EvaluateShot(shot, worldAt(t), t, chase)
		if err != nil {
			return err
		}
		chase = next
		if err := emit(camera.Frame{Time: t, Transform: tr}); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return apperrors.Canceled(err)
		}

		select {
		case <-ctx.Done():
			return apperrors.Canceled(ctx.Err())
		case <-ticker.C:
		}
	}
}

// BakeShot samples shot into a keyframe track. Frame times are shot-local
// and velocity is the forward difference between frames.
func (s *CameraService) BakeShot(shot domain.Shot, worldAt camera.WorldAt, fps int) (*domain.BakedAnimation, error) {
	frames, err := s.Sample(shot, worldAt, fps)
	if err != nil {
		return nil, err
	}

	keys := make([]domain.Keyframe, len(frames))
	for i, f := range frames {
		keys[i] = domain.Keyframe{
			Time:     f.Time - shot.Start,
			Position: f.Position,
			Rotation: f.Rotation,
		}
	}
	for i := range keys {
		switch {
		case len(keys) < 2:
		case i+1 < len(keys):
			keys[i].Velocity = velocity(keys[i], keys[i+1])
		default:
			keys[i].Velocity = keys[i-1].Velocity
		}
	}

	return &domain.BakedAnimation{
		ObjectID: "camera",
		Source:   fmt.Sprintf("camera:%s", shot.ID),
		FPS:      fps,
		Duration: shot.Duration(),
		Frames:   keys,
	}, nil
}

func velocity(a, b domain.Keyframe) mgl64.Vec3 {
	dt := b.Time - a.Time
	if dt <= 0 {
		return mgl64.Vec3{}
	}
	return b.Position.Sub(a.Position).Mul(1 / dt)
}

func modeOf(shot domain.Shot) string {
	if shot.Path == nil {
		return "unknown"
	}
	return string(shot.Path.Mode())
}
