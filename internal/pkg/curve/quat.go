package curve

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Quat is a rotation stored as (x, y, z, w), the layout physics sources
// and exporters exchange.
type Quat [4]float64

// Identity is the no-rotation quaternion.
var Identity = Quat{0, 0, 0, 1}

// QuatFromMgl converts from the mathgl representation.
func QuatFromMgl(q mgl64.Quat) Quat {
	return Quat{q.V[0], q.V[1], q.V[2], q.W}
}

// Mgl converts to the mathgl representation.
func (q Quat) Mgl() mgl64.Quat {
	return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
}

// IsZero reports whether every component is zero, which is how an
// absent rotation arrives over the wire.
func (q Quat) IsZero() bool {
	return q == Quat{}
}

// Normalize returns the unit quaternion, or Identity for a zero quaternion.
func (q Quat) Normalize() Quat {
	if q.IsZero() {
		return Identity
	}
	return QuatFromMgl(q.Mgl().Normalize())
}

// Rotate applies q to v.
func (q Quat) Rotate(v mgl64.Vec3) mgl64.Vec3 {
	return q.Mgl().Normalize().Rotate(v)
}

// Finite reports whether no component is NaN or Inf.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// FiniteQuat reports whether no component of q is NaN or Inf.
func FiniteQuat(q Quat) bool {
	for _, c := range q {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// FiniteScalar reports whether f is neither NaN nor Inf.
func FiniteScalar(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
