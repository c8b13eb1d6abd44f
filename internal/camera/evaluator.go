// Package camera evaluates camera paths into transforms. Evaluation is a
// pure function of the path, the world snapshot and normalized progress;
// the only carried state is ChaseState, which callers own.
package camera

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// Transform is a camera pose. LookAt is set for modes that aim at a point.
type Transform struct {
	Position mgl64.Vec3  `json:"position"`
	Rotation curve.Quat  `json:"rotation"`
	LookAt   *mgl64.Vec3 `json:"look_at,omitempty"`
}

// ChaseState is the smoothed position a CHASE path carries between frames.
// The zero value means no previous frame.
type ChaseState struct {
	Position    mgl64.Vec3 `json:"position"`
	Elapsed     float64    `json:"elapsed"`
	Initialized bool       `json:"initialized"`
}

// Input bundles one evaluation's arguments. T is eased progress and is
// clamped to [0,1]; Elapsed is seconds since the shot started.
type Input struct {
	Path    domain.CameraPath
	World   domain.WorldState
	T       float64
	Elapsed float64
	Chase   ChaseState
}

// Evaluate computes the camera transform for in. The returned ChaseState is
// the input state unchanged for every mode except CHASE.
func Evaluate(in Input) (Transform, ChaseState, error) {
	t := curve.Clamp01(in.T)

	switch p := in.Path.(type) {
	case domain.StaticPath:
		return aimAt(p.Position, p.LookAt), in.Chase, nil

	case domain.OrbitPath:
		tr, err := evalOrbit(p, in.World, in.Elapsed)
		return tr, in.Chase, err

	case domain.ChasePath:
		return evalChase(p, in.World, in.Elapsed, in.Chase)

	case domain.DollyPath:
		return aimAt(curve.LerpVec3(p.From, p.To, t), p.LookAt), in.Chase, nil

	case domain.FlythroughPath:
		return evalFlythrough(p, t), in.Chase, nil

	case domain.CranePath:
		return evalCrane(p, t), in.Chase, nil

	case domain.TrackPath:
		tr, err := evalTrack(p, in.World, t)
		return tr, in.Chase, err

	case nil:
		return Transform{}, in.Chase, apperrors.Validation("camera path is missing")
	}
	return Transform{}, in.Chase, fmt.Errorf("unsupported camera path %T", in.Path)
}

func aimAt(eye, target mgl64.Vec3) Transform {
	look := target
	return Transform{Position: eye, Rotation: curve.LookAt(eye, target), LookAt: &look}
}

func resolve(world domain.WorldState, id string) (domain.ObjectState, error) {
	if world == nil {
		return domain.ObjectState{}, apperrors.UnresolvedReference(id)
	}
	s, ok := world.PositionOf(id)
	if !ok {
		return domain.ObjectState{}, apperrors.UnresolvedReference(id)
	}
	if !curve.Finite(s.Position) || !curve.Finite(s.Velocity) {
		return domain.ObjectState{}, apperrors.Validationf("object %q has a non-finite state", id).WithDetail("object_id", id)
	}
	return s, nil
}

// evalOrbit places the camera on a ring of radius r around the focus. The
// ring is tilted by elevation so the camera stays r away from the focus.
func evalOrbit(p domain.OrbitPath, world domain.WorldState, elapsed float64) (Transform, error) {
	focus, err := resolve(world, p.Focus)
	if err != nil {
		return Transform{}, err
	}
	angle := 2 * math.Pi * p.Speed * elapsed
	el := mgl64.DegToRad(p.Elevation)
	offset := mgl64.Vec3{
		p.Radius * math.Cos(el) * math.Cos(angle),
		p.Radius * math.Sin(el),
		p.Radius * math.Cos(el) * math.Sin(angle),
	}
	return aimAt(focus.Position.Add(offset), focus.Position), nil
}

// evalChase eases the previous camera position toward target+offset. The
// remaining distance shrinks by Damping once per FrameInterval of elapsed
// time, so the result does not depend on how often callers sample.
func evalChase(p domain.ChasePath, world domain.WorldState, elapsed float64, prev ChaseState) (Transform, ChaseState, error) {
	focus, err := resolve(world, p.Focus)
	if err != nil {
		return Transform{}, prev, err
	}
	target := focus.Position.Add(p.Offset)
	if p.LookAhead != 0 {
		target = target.Add(focus.Velocity.Mul(p.LookAhead))
	}

	interval := p.FrameInterval
	if interval <= 0 {
		interval = domain.DefaultChaseFrameInterval
	}

	pos := target
	dt := elapsed - prev.Elapsed
	switch {
	case !prev.Initialized || dt < 0:
		// first frame or a rewind: snap
	case dt == 0:
		pos = prev.Position
	default:
		keep := math.Pow(p.Damping, dt/interval)
		pos = target.Add(prev.Position.Sub(target).Mul(keep))
	}

	next := ChaseState{Position: pos, Elapsed: elapsed, Initialized: true}
	return aimAt(pos, focus.Position), next, nil
}

// evalFlythrough walks uniform-in-parameter segments: Catmull-Rom through
// more than two waypoints, a straight line otherwise.
func evalFlythrough(p domain.FlythroughPath, t float64) Transform {
	pts := p.Waypoints
	segments := len(pts) - 1
	seg, local := segmentAt(segments, t)

	var pos, tangent mgl64.Vec3
	if len(pts) > 2 {
		p0, p1, p2, p3 := controlPoints(pts, seg)
		pos = curve.CatmullRom(p0, p1, p2, p3, local)
		tangent = curve.CatmullRomTangent(p0, p1, p2, p3, local)
	} else {
		pos = curve.LerpVec3(pts[seg], pts[seg+1], local)
		tangent = pts[seg+1].Sub(pts[seg])
	}

	if curve.IsDegenerate(tangent) {
		tangent = fallbackDirection(pts, seg, pos)
	}
	return Transform{Position: pos, Rotation: curve.LookRotation(tangent, curve.WorldUp)}
}

// segmentAt maps t onto segment index and local parameter.
func segmentAt(segments int, t float64) (int, float64) {
	scaled := t * float64(segments)
	seg := int(math.Floor(scaled))
	if seg >= segments {
		seg = segments - 1
	}
	return seg, scaled - float64(seg)
}

func controlPoints(pts []mgl64.Vec3, seg int) (p0, p1, p2, p3 mgl64.Vec3) {
	at := func(i int) mgl64.Vec3 {
		if i < 0 {
			return pts[0]
		}
		if i >= len(pts) {
			return pts[len(pts)-1]
		}
		return pts[i]
	}
	return at(seg - 1), at(seg), at(seg + 1), at(seg + 2)
}

// fallbackDirection faces the next waypoint distinct from pos, then the
// direction away from the previous distinct one.
func fallbackDirection(pts []mgl64.Vec3, seg int, pos mgl64.Vec3) mgl64.Vec3 {
	for i := seg + 1; i < len(pts); i++ {
		if d := pts[i].Sub(pos); !curve.IsDegenerate(d) {
			return d
		}
	}
	for i := seg; i >= 0; i-- {
		if d := pos.Sub(pts[i]); !curve.IsDegenerate(d) {
			return d
		}
	}
	return mgl64.Vec3{}
}

func evalCrane(p domain.CranePath, t float64) Transform {
	angle := mgl64.DegToRad(p.StartAngle + p.Arc*t)
	pos := mgl64.Vec3{
		p.Pivot.X() + p.Radius*math.Cos(angle),
		p.Pivot.Y() + curve.Lerp(p.HeightRange[0], p.HeightRange[1], t),
		p.Pivot.Z() + p.Radius*math.Sin(angle),
	}
	return aimAt(pos, p.Pivot)
}

// evalTrack moves at constant speed along the polyline.
func evalTrack(p domain.TrackPath, world domain.WorldState, t float64) (Transform, error) {
	var focus *domain.ObjectState
	if p.Focus != "" {
		s, err := resolve(world, p.Focus)
		if err != nil {
			return Transform{}, err
		}
		focus = &s
	}

	pts := p.Waypoints
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += pts[i].Sub(pts[i-1]).Len()
	}

	pos, seg := pts[0], 0
	if total > 0 {
		remaining := t * total
		for seg = 0; seg < len(pts)-2; seg++ {
			l := pts[seg+1].Sub(pts[seg]).Len()
			if remaining <= l {
				break
			}
			remaining -= l
		}
		if l := pts[seg+1].Sub(pts[seg]).Len(); l > 0 {
			pos = curve.LerpVec3(pts[seg], pts[seg+1], math.Min(remaining/l, 1))
		} else {
			pos = pts[seg]
		}
	}

	if focus != nil {
		return aimAt(pos, focus.Position), nil
	}
	dir := pts[seg+1].Sub(pts[seg])
	if curve.IsDegenerate(dir) {
		dir = fallbackDirection(pts, seg, pos)
	}
	return Transform{Position: pos, Rotation: curve.LookRotation(dir, curve.WorldUp)}, nil
}
