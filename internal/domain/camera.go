package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// PathMode discriminates camera path variants
type PathMode string

const (
	PathModeOrbit      PathMode = "orbit"
	PathModeStatic     PathMode = "static"
	PathModeChase      PathMode = "chase"
	PathModeDolly      PathMode = "dolly"
	PathModeFlythrough PathMode = "flythrough"
	PathModeCrane      PathMode = "crane"
	PathModeTrack      PathMode = "track"
)

// IsValid checks if the mode is known
func (m PathMode) IsValid() bool {
	switch m {
	case PathModeOrbit, PathModeStatic, PathModeChase, PathModeDolly,
		PathModeFlythrough, PathModeCrane, PathModeTrack:
		return true
	}
	return false
}

// Defaults applied by CameraPathSpec.Decode when a field is omitted.
const (
	DefaultOrbitSpeed         = 0.1
	DefaultChaseDamping       = 0.9
	DefaultChaseFrameInterval = 1.0 / 60.0
	DefaultCraneArc           = 90.0
)

// DefaultChaseOffset places the camera behind and above the target.
var DefaultChaseOffset = mgl64.Vec3{0, 2, 6}

// CameraPath is a closed set of camera path variants. Consumers switch on
// the concrete type; the unexported method keeps other packages from adding
// variants.
type CameraPath interface {
	Mode() PathMode
	cameraPath()
}

// OrbitPath circles a focus object at a fixed radius and elevation.
type OrbitPath struct {
	Focus     string
	Radius    float64
	Elevation float64 // degrees above the focus plane
	Speed     float64 // revolutions per second
}

// StaticPath holds a fixed position facing a fixed point.
type StaticPath struct {
	Position mgl64.Vec3
	LookAt   mgl64.Vec3
}

// ChasePath follows a focus object with exponential smoothing.
type ChasePath struct {
	Focus  string
	Offset mgl64.Vec3
	// Damping is the fraction of the remaining distance kept per frame
	// interval: 0 snaps to the target, values near 1 lag behind.
	Damping       float64
	FrameInterval float64
	// LookAhead leads the target by its velocity times this many seconds.
	LookAhead float64
}

// DollyPath moves in a straight line facing a fixed point.
type DollyPath struct {
	From   mgl64.Vec3
	To     mgl64.Vec3
	LookAt mgl64.Vec3
}

// FlythroughPath travels an ordered waypoint list facing its direction of travel.
type FlythroughPath struct {
	Waypoints []mgl64.Vec3
}

// CranePath sweeps an arc around a pivot while rising or falling.
type CranePath struct {
	Pivot       mgl64.Vec3
	Radius      float64
	StartAngle  float64    // degrees
	Arc         float64    // degrees swept over the shot
	HeightRange [2]float64
}

// TrackPath moves at constant speed along a polyline, optionally watching
// a focus object instead of the direction of travel.
type TrackPath struct {
	Waypoints []mgl64.Vec3
	Focus     string
}

func (OrbitPath) Mode() PathMode      { return PathModeOrbit }
func (StaticPath) Mode() PathMode     { return PathModeStatic }
func (ChasePath) Mode() PathMode      { return PathModeChase }
func (DollyPath) Mode() PathMode      { return PathModeDolly }
func (FlythroughPath) Mode() PathMode { return PathModeFlythrough }
func (CranePath) Mode() PathMode      { return PathModeCrane }
func (TrackPath) Mode() PathMode      { return PathModeTrack }

func (OrbitPath) cameraPath()      {}
func (StaticPath) cameraPath()     {}
func (ChasePath) cameraPath()      {}
func (DollyPath) cameraPath()      {}
func (FlythroughPath) cameraPath() {}
func (CranePath) cameraPath()      {}
func (TrackPath) cameraPath()      {}

// CameraPathSpec is the flat authoring form of a camera path. Only the
// fields belonging to Mode may be set.
type CameraPathSpec struct {
	Mode          PathMode     `json:"mode" yaml:"mode" validate:"required,path_mode"`
	Focus         string       `json:"focus,omitempty" yaml:"focus,omitempty"`
	Position      *mgl64.Vec3  `json:"position,omitempty" yaml:"position,omitempty"`
	LookAt        *mgl64.Vec3  `json:"look_at,omitempty" yaml:"look_at,omitempty"`
	Radius        *float64     `json:"radius,omitempty" yaml:"radius,omitempty"`
	Elevation     *float64     `json:"elevation,omitempty" yaml:"elevation,omitempty"`
	Speed         *float64     `json:"speed,omitempty" yaml:"speed,omitempty"`
	FromPosition  *mgl64.Vec3  `json:"from_position,omitempty" yaml:"from_position,omitempty"`
	ToPosition    *mgl64.Vec3  `json:"to_position,omitempty" yaml:"to_position,omitempty"`
	Offset        *mgl64.Vec3  `json:"offset,omitempty" yaml:"offset,omitempty"`
	Damping       *float64     `json:"damping,omitempty" yaml:"damping,omitempty"`
	FrameInterval *float64     `json:"frame_interval,omitempty" yaml:"frame_interval,omitempty"`
	LookAhead     *float64     `json:"look_ahead,omitempty" yaml:"look_ahead,omitempty"`
	Waypoints     []mgl64.Vec3 `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
	Pivot         *mgl64.Vec3  `json:"pivot,omitempty" yaml:"pivot,omitempty"`
	StartAngle    *float64     `json:"start_angle,omitempty" yaml:"start_angle,omitempty"`
	Arc           *float64     `json:"arc,omitempty" yaml:"arc,omitempty"`
	HeightRange   *[2]float64  `json:"height_range,omitempty" yaml:"height_range,omitempty"`
}

// fields allowed per mode, by their JSON name
var modeFields = map[PathMode][]string{
	PathModeOrbit:      {"focus", "radius", "elevation", "speed"},
	PathModeStatic:     {"position", "look_at"},
	PathModeChase:      {"focus", "offset", "damping", "frame_interval", "look_ahead"},
	PathModeDolly:      {"from_position", "to_position", "look_at"},
	PathModeFlythrough: {"waypoints"},
	PathModeCrane:      {"pivot", "radius", "start_angle", "arc", "height_range"},
	PathModeTrack:      {"waypoints", "focus"},
}

func (s *CameraPathSpec) setFields() []string {
	var set []string
	add := func(name string, ok bool) {
		if ok {
			set = append(set, name)
		}
	}
	add("focus", s.Focus != "")
	add("position", s.Position != nil)
	add("look_at", s.LookAt != nil)
	add("radius", s.Radius != nil)
	add("elevation", s.Elevation != nil)
	add("speed", s.Speed != nil)
	add("from_position", s.FromPosition != nil)
	add("to_position", s.ToPosition != nil)
	add("offset", s.Offset != nil)
	add("damping", s.Damping != nil)
	add("frame_interval", s.FrameInterval != nil)
	add("look_ahead", s.LookAhead != nil)
	add("waypoints", len(s.Waypoints) > 0)
	add("pivot", s.Pivot != nil)
	add("start_angle", s.StartAngle != nil)
	add("arc", s.Arc != nil)
	add("height_range", s.HeightRange != nil)
	return set
}

// Decode validates the spec and builds the matching CameraPath variant.
func (s *CameraPathSpec) Decode() (CameraPath, error) {
	if !s.Mode.IsValid() {
		return nil, apperrors.Validationf("unknown camera mode %q", s.Mode)
	}

	allowed := make(map[string]bool)
	for _, name := range modeFields[s.Mode] {
		allowed[name] = true
	}
	var foreign []string
	for _, name := range s.setFields() {
		if !allowed[name] {
			foreign = append(foreign, name)
		}
	}
	if len(foreign) > 0 {
		sort.Strings(foreign)
		return nil, apperrors.Validationf("%s path does not accept: %s", s.Mode, strings.Join(foreign, ", "))
	}

	if err := s.checkFinite(); err != nil {
		return nil, err
	}

	switch s.Mode {
	case PathModeOrbit:
		if s.Focus == "" {
			return nil, apperrors.Validation("orbit path requires focus")
		}
		if s.Radius == nil || *s.Radius <= 0 {
			return nil, apperrors.Validation("orbit path requires a positive radius")
		}
		return OrbitPath{
			Focus:     s.Focus,
			Radius:    *s.Radius,
			Elevation: floatOr(s.Elevation, 0),
			Speed:     floatOr(s.Speed, DefaultOrbitSpeed),
		}, nil

	case PathModeStatic:
		if s.Position == nil || s.LookAt == nil {
			return nil, apperrors.Validation("static path requires position and look_at")
		}
		return StaticPath{Position: *s.Position, LookAt: *s.LookAt}, nil

	case PathModeChase:
		if s.Focus == "" {
			return nil, apperrors.Validation("chase path requires focus")
		}
		damping := floatOr(s.Damping, DefaultChaseDamping)
		if damping < 0 || damping >= 1 {
			return nil, apperrors.Validation("chase damping must be in [0, 1)")
		}
		interval := floatOr(s.FrameInterval, DefaultChaseFrameInterval)
		if interval <= 0 {
			return nil, apperrors.Validation("chase frame_interval must be positive")
		}
		return ChasePath{
			Focus:         s.Focus,
			Offset:        vecOr(s.Offset, DefaultChaseOffset),
			Damping:       damping,
			FrameInterval: interval,
			LookAhead:     floatOr(s.LookAhead, 0),
		}, nil

	case PathModeDolly:
		if s.FromPosition == nil || s.ToPosition == nil {
			return nil, apperrors.Validation("dolly path requires from_position and to_position")
		}
		if s.LookAt == nil {
			return nil, apperrors.Validation("dolly path requires look_at")
		}
		return DollyPath{From: *s.FromPosition, To: *s.ToPosition, LookAt: *s.LookAt}, nil

	case PathModeFlythrough:
		if len(s.Waypoints) < 2 {
			return nil, apperrors.Validation("flythrough path requires at least 2 waypoints")
		}
		return FlythroughPath{Waypoints: cloneVecs(s.Waypoints)}, nil

	case PathModeCrane:
		if s.Pivot == nil {
			return nil, apperrors.Validation("crane path requires pivot")
		}
		if s.Radius == nil || *s.Radius <= 0 {
			return nil, apperrors.Validation("crane path requires a positive radius")
		}
		heights := [2]float64{0, *s.Radius}
		if s.HeightRange != nil {
			heights = *s.HeightRange
		}
		return CranePath{
			Pivot:       *s.Pivot,
			Radius:      *s.Radius,
			StartAngle:  floatOr(s.StartAngle, 0),
			Arc:         floatOr(s.Arc, DefaultCraneArc),
			HeightRange: heights,
		}, nil

	case PathModeTrack:
		if len(s.Waypoints) < 2 {
			return nil, apperrors.Validation("track path requires at least 2 waypoints")
		}
		return TrackPath{Waypoints: cloneVecs(s.Waypoints), Focus: s.Focus}, nil
	}
	return nil, apperrors.Validationf("unknown camera mode %q", s.Mode)
}

func (s *CameraPathSpec) checkFinite() error {
	vecs := []*mgl64.Vec3{s.Position, s.LookAt, s.FromPosition, s.ToPosition, s.Offset, s.Pivot}
	for _, v := range vecs {
		if v != nil && !curve.Finite(*v) {
			return apperrors.Validation("camera path contains a non-finite vector")
		}
	}
	for _, v := range s.Waypoints {
		if !curve.Finite(v) {
			return apperrors.Validation("camera path contains a non-finite waypoint")
		}
	}
	scalars := []*float64{s.Radius, s.Elevation, s.Speed, s.Damping, s.FrameInterval, s.LookAhead, s.StartAngle, s.Arc}
	for _, f := range scalars {
		if f != nil && !curve.FiniteScalar(*f) {
			return apperrors.Validation("camera path contains a non-finite number")
		}
	}
	if s.HeightRange != nil && (!curve.FiniteScalar(s.HeightRange[0]) || !curve.FiniteScalar(s.HeightRange[1])) {
		return apperrors.Validation("camera path contains a non-finite height range")
	}
	return nil
}

// EncodeCameraPath converts a variant back to its flat spec.
func EncodeCameraPath(p CameraPath) (CameraPathSpec, error) {
	switch v := p.(type) {
	case OrbitPath:
		return CameraPathSpec{Mode: PathModeOrbit, Focus: v.Focus, Radius: ptr(v.Radius), Elevation: ptr(v.Elevation), Speed: ptr(v.Speed)}, nil
	case StaticPath:
		return CameraPathSpec{Mode: PathModeStatic, Position: ptr(v.Position), LookAt: ptr(v.LookAt)}, nil
	case ChasePath:
		return CameraPathSpec{
			Mode: PathModeChase, Focus: v.Focus, Offset: ptr(v.Offset), Damping: ptr(v.Damping),
			FrameInterval: ptr(v.FrameInterval), LookAhead: ptr(v.LookAhead),
		}, nil
	case DollyPath:
		return CameraPathSpec{Mode: PathModeDolly, FromPosition: ptr(v.From), ToPosition: ptr(v.To), LookAt: ptr(v.LookAt)}, nil
	case FlythroughPath:
		return CameraPathSpec{Mode: PathModeFlythrough, Waypoints: cloneVecs(v.Waypoints)}, nil
	case CranePath:
		return CameraPathSpec{
			Mode: PathModeCrane, Pivot: ptr(v.Pivot), Radius: ptr(v.Radius), StartAngle: ptr(v.StartAngle),
			Arc: ptr(v.Arc), HeightRange: ptr(v.HeightRange),
		}, nil
	case TrackPath:
		return CameraPathSpec{Mode: PathModeTrack, Waypoints: cloneVecs(v.Waypoints), Focus: v.Focus}, nil
	}
	return CameraPathSpec{}, fmt.Errorf("unsupported camera path %T", p)
}

// References lists the world object ids a path needs resolved.
func References(p CameraPath) []string {
	switch v := p.(type) {
	case OrbitPath:
		return []string{v.Focus}
	case ChasePath:
		return []string{v.Focus}
	case TrackPath:
		if v.Focus != "" {
			return []string{v.Focus}
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func floatOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}

func vecOr(v *mgl64.Vec3, def mgl64.Vec3) mgl64.Vec3 {
	if v == nil {
		return def
	}
	return *v
}

func cloneVecs(in []mgl64.Vec3) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(in))
	copy(out, in)
	return out
}
