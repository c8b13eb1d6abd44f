package domain

import (
	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// Shot assigns one camera path to the half-open interval [Start, End).
type Shot struct {
	ID     string
	Path   CameraPath
	Start  float64
	End    float64
	Easing curve.Easing
}

// Duration returns End - Start in seconds.
func (s Shot) Duration() float64 {
	return s.End - s.Start
}

// Validate checks the shot's interval, easing and path.
func (s Shot) Validate() error {
	if s.Path == nil {
		return apperrors.Validationf("shot %q has no camera path", s.ID)
	}
	if !curve.FiniteScalar(s.Start) || !curve.FiniteScalar(s.End) {
		return apperrors.Validationf("shot %q has a non-finite time range", s.ID)
	}
	if s.Start < 0 {
		return apperrors.Validationf("shot %q starts before 0", s.ID)
	}
	if s.Start >= s.End {
		return apperrors.Validationf("shot %q must start before it ends", s.ID)
	}
	if s.Duration() > MaxDuration {
		return apperrors.Validationf("shot %q is longer than %ds", s.ID, MaxDuration)
	}
	if !s.Easing.Valid() {
		return apperrors.Validationf("shot %q has unknown easing %q", s.ID, s.Easing)
	}
	return nil
}

// ShotSpec is the authoring form of a shot
type ShotSpec struct {
	ID         string         `json:"id" yaml:"id" validate:"required"`
	CameraPath CameraPathSpec `json:"camera_path" yaml:"camera_path"`
	StartTime  float64        `json:"start_time" yaml:"start_time" validate:"gte=0"`
	EndTime    float64        `json:"end_time" yaml:"end_time" validate:"gtfield=StartTime"`
	Easing     string         `json:"easing,omitempty" yaml:"easing,omitempty" validate:"omitempty,easing"`
}

// Decode builds and validates a Shot.
func (s ShotSpec) Decode() (Shot, error) {
	path, err := s.CameraPath.Decode()
	if err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil {
			appErr.WithDetail("shot_id", s.ID)
		}
		return Shot{}, err
	}
	easing, err := curve.ParseEasing(s.Easing)
	if err != nil {
		return Shot{}, apperrors.Validation(err.Error()).WithDetail("shot_id", s.ID)
	}
	shot := Shot{
		ID:     s.ID,
		Path:   path,
		Start:  s.StartTime,
		End:    s.EndTime,
		Easing: easing,
	}
	if err := shot.Validate(); err != nil {
		return Shot{}, err
	}
	return shot, nil
}

// EncodeShot converts a shot back to its authoring form.
func EncodeShot(s Shot) (ShotSpec, error) {
	path, err := EncodeCameraPath(s.Path)
	if err != nil {
		return ShotSpec{}, err
	}
	return ShotSpec{
		ID:         s.ID,
		CameraPath: path,
		StartTime:  s.Start,
		EndTime:    s.End,
		Easing:     string(s.Easing),
	}, nil
}
