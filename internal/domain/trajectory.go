package domain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// RawSample is one physics-source state for a body. Timestamps within a
// trajectory are non-decreasing but may be irregular.
type RawSample struct {
	Time     float64    `json:"time"`
	Position mgl64.Vec3 `json:"position"`
	Rotation curve.Quat `json:"rotation"`
	Velocity mgl64.Vec3 `json:"velocity"`
}

// Keyframe is one pose on the fixed output grid.
type Keyframe struct {
	Time     float64    `json:"time" yaml:"time"`
	Position mgl64.Vec3 `json:"position" yaml:"position"`
	Rotation curve.Quat `json:"rotation" yaml:"rotation"`
	Velocity mgl64.Vec3 `json:"velocity" yaml:"velocity"`
}

// BakedAnimation is the keyframe track for one object. Frames are on the
// 1/FPS grid starting at 0 with strictly increasing time. Source is the
// simulation id for physics bakes and "camera:<shot id>" for camera bakes.
type BakedAnimation struct {
	ObjectID string     `json:"object_id"`
	Source   string     `json:"source"`
	FPS      int        `json:"fps"`
	Duration float64    `json:"duration"`
	Frames   []Keyframe `json:"frames"`
	DataPath string     `json:"data_path,omitempty"`
}

// FrameCount is floor(duration*fps)+1. The epsilon absorbs products such as
// 0.3*10 landing just below an integer.
func FrameCount(duration float64, fps int) int {
	return int(math.Floor(duration*float64(fps)+1e-9)) + 1
}

// CheckGrid rejects frame grids that cannot be allocated: fps outside
// (0, MaxFPS], a duration that is not positive and finite or exceeds
// MaxDuration, and grids longer than MaxFrames.
func CheckGrid(duration float64, fps int) error {
	if fps <= 0 || fps > MaxFPS {
		return apperrors.Validationf("fps must be in (0, %d]", MaxFPS)
	}
	if !curve.FiniteScalar(duration) || duration <= 0 {
		return apperrors.Validation("duration must be positive and finite")
	}
	if duration > MaxDuration {
		return apperrors.Validationf("duration %gs exceeds the %ds limit", duration, MaxDuration)
	}
	if n := FrameCount(duration, fps); n > MaxFrames {
		return apperrors.Validationf("%d frames exceed the %d frame limit", n, MaxFrames)
	}
	return nil
}
