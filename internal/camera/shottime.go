package camera

import (
	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// ShotTime is a scene time mapped into one shot.
type ShotTime struct {
	Raw     float64 `json:"raw"`
	Eased   float64 `json:"eased"`
	Elapsed float64 `json:"elapsed"`
}

// MapShotTime maps absolute scene time into shot-local progress. The shot
// is inactive outside [Start, End) and at non-finite times; callers skip
// inactive shots rather than clamping them.
func MapShotTime(shot domain.Shot, sceneTime float64) (ShotTime, bool) {
	// NaN fails both bound comparisons, so it needs its own check.
	if !curve.FiniteScalar(sceneTime) || sceneTime < shot.Start || sceneTime >= shot.End {
		return ShotTime{}, false
	}
	raw := (sceneTime - shot.Start) / (shot.End - shot.Start)
	return ShotTime{
		Raw:     raw,
		Eased:   shot.Easing.Apply(raw),
		Elapsed: sceneTime - shot.Start,
	}, true
}

// ActiveShot returns the first shot, in list order, active at sceneTime.
func ActiveShot(shots []domain.Shot, sceneTime float64) (domain.Shot, ShotTime, bool) {
	for _, s := range shots {
		if st, ok := MapShotTime(s, sceneTime); ok {
			return s, st, true
		}
	}
	return domain.Shot{}, ShotTime{}, false
}

// EvaluateShot maps sceneTime into shot and evaluates its path. The bool
// result is false when the shot is inactive at sceneTime.
func EvaluateShot(shot domain.Shot, world domain.WorldState, sceneTime float64, chase ChaseState) (Transform, ChaseState, bool, error) {
	if !curve.FiniteScalar(sceneTime) {
		return Transform{}, chase, false, apperrors.Validationf("scene time %v is not finite", sceneTime)
	}
	st, ok := MapShotTime(shot, sceneTime)
	if !ok {
		return Transform{}, chase, false, nil
	}
	tr, next, err := Evaluate(Input{
		Path:    shot.Path,
		World:   world,
		T:       st.Eased,
		Elapsed: st.Elapsed,
		Chase:   chase,
	})
	if err != nil {
		return Transform{}, chase, true, err
	}
	return tr, next, true, nil
}

// Frame is one sampled camera pose at scene time Time.
type Frame struct {
	Time float64 `json:"time"`
	Transform
}

// WorldAt supplies world state for a scene time.
type WorldAt func(sceneTime float64) domain.WorldState

// SampleShot evaluates shot on the 1/fps grid over [Start, End). CHASE
// state is threaded from one frame to the next.
func SampleShot(shot domain.Shot, worldAt WorldAt, fps int) ([]Frame, error) {
	if err := shot.Validate(); err != nil {
		return nil, err
	}
	if err := domain.CheckGrid(shot.Duration(), fps); err != nil {
		return nil, err
	}

	var (
		frames []Frame
		chase  ChaseState
	)
	for i := 0; ; i++ {
		t := shot.Start + float64(i)/float64(fps)
		if t >= shot.End {
			break
		}
		tr, next, _, err := EvaluateShot(shot, worldAt(t), t, chase)
		if err != nil {
			return nil, err
		}
		chase = next
		frames = append(frames, Frame{Time: t, Transform: tr})
	}
	return frames, nil
}

// StaticWorld adapts a fixed snapshot to WorldAt.
func StaticWorld(w domain.WorldState) WorldAt {
	return func(float64) domain.WorldState { return w }
}
