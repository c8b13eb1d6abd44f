// Package trajectory resamples physics trajectories onto a fixed frame grid.
package trajectory

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// Resample produces FrameCount(duration, fps) keyframes at i/fps from raw.
// Times outside the raw coverage hold the nearest endpoint with zero
// velocity.
func Resample(objectID string, raw []domain.RawSample, fps int, duration float64) (*domain.BakedAnimation, error) {
	if err := domain.CheckGrid(duration, fps); err != nil {
		return nil, apperrors.GetAppError(err).WithDetail("object_id", objectID)
	}
	if len(raw) == 0 {
		return nil, apperrors.EmptyTrajectory(objectID)
	}
	if err := Check(raw); err != nil {
		return nil, apperrors.GetAppError(err).WithDetail("object_id", objectID)
	}

	n := domain.FrameCount(duration, fps)
	frames := make([]domain.Keyframe, n)
	for i := range frames {
		frames[i] = At(raw, float64(i)/float64(fps))
	}
	return &domain.BakedAnimation{
		ObjectID: objectID,
		FPS:      fps,
		Duration: duration,
		Frames:   frames,
	}, nil
}

// Check validates ordering and finiteness of raw samples.
func Check(raw []domain.RawSample) error {
	for i, s := range raw {
		if !curve.FiniteScalar(s.Time) || !curve.Finite(s.Position) ||
			!curve.Finite(s.Velocity) || !curve.FiniteQuat(s.Rotation) {
			return apperrors.Validationf("sample %d contains a non-finite value", i)
		}
		if i > 0 && s.Time < raw[i-1].Time {
			return apperrors.Validationf("sample %d goes back in time (%v after %v)", i, s.Time, raw[i-1].Time)
		}
	}
	return nil
}

// At reads raw at time t. raw must be non-empty and ordered by time.
func At(raw []domain.RawSample, t float64) domain.Keyframe {
	first, last := raw[0], raw[len(raw)-1]
	if t < first.Time {
		return hold(first, t)
	}
	if t > last.Time {
		return hold(last, t)
	}

	// s1 is the first sample at or after t, s0 the one before it. An exact
	// hit on a sample timestamp resolves to that sample.
	j := sort.Search(len(raw), func(i int) bool { return raw[i].Time >= t })
	if raw[j].Time == t {
		return frame(raw[j], t)
	}
	s0, s1 := raw[j-1], raw[j]
	span := s1.Time - s0.Time
	if span == 0 {
		return frame(s0, t)
	}
	alpha := (t - s0.Time) / span
	return domain.Keyframe{
		Time:     t,
		Position: curve.LerpVec3(s0.Position, s1.Position, alpha),
		Rotation: curve.Slerp(s0.Rotation, s1.Rotation, alpha),
		Velocity: curve.LerpVec3(s0.Velocity, s1.Velocity, alpha),
	}
}

func hold(s domain.RawSample, t float64) domain.Keyframe {
	return domain.Keyframe{Time: t, Position: s.Position, Rotation: s.Rotation, Velocity: mgl64.Vec3{}}
}

func frame(s domain.RawSample, t float64) domain.Keyframe {
	return domain.Keyframe{Time: t, Position: s.Position, Rotation: s.Rotation, Velocity: s.Velocity}
}
