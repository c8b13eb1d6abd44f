package curve

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// epsilon below which a direction is treated as degenerate.
const epsilon = 1e-9

// WorldUp is +Y.
var WorldUp = mgl64.Vec3{0, 1, 0}

// Clamp01 clamps t to [0,1]. NaN clamps to 0.
func Clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Lerp interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpVec3 interpolates component-wise between a and b.
func LerpVec3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Slerp interpolates rotations along the shortest arc. The endpoints are
// returned exactly, so t=0 leaves a untouched.
func Slerp(a, b Quat, t float64) Quat {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	qa, qb := a.Normalize().Mgl(), b.Normalize().Mgl()
	if qa.Dot(qb) < 0 {
		qb = qb.Scale(-1)
	}
	return QuatFromMgl(mgl64.QuatSlerp(qa, qb, t).Normalize())
}

// CatmullRom evaluates the uniform Catmull-Rom segment between p1 and p2.
func CatmullRom(p0, p1, p2, p3 mgl64.Vec3, t float64) mgl64.Vec3 {
	t2 := t * t
	t3 := t2 * t
	return p1.Mul(2).
		Add(p2.Sub(p0).Mul(t)).
		Add(p0.Mul(2).Sub(p1.Mul(5)).Add(p2.Mul(4)).Sub(p3).Mul(t2)).
		Add(p3.Sub(p0).Add(p1.Mul(3)).Sub(p2.Mul(3)).Mul(t3)).
		Mul(0.5)
}

// CatmullRomTangent is the derivative of CatmullRom with respect to t.
func CatmullRomTangent(p0, p1, p2, p3 mgl64.Vec3, t float64) mgl64.Vec3 {
	t2 := t * t
	return p2.Sub(p0).
		Add(p0.Mul(2).Sub(p1.Mul(5)).Add(p2.Mul(4)).Sub(p3).Mul(2 * t)).
		Add(p3.Sub(p0).Add(p1.Mul(3)).Sub(p2.Mul(3)).Mul(3 * t2)).
		Mul(0.5)
}

// IsDegenerate reports whether v is too short to define a direction.
func IsDegenerate(v mgl64.Vec3) bool {
	return v.Len() < epsilon
}

// LookRotation returns the rotation whose -Z axis points along dir with +Y
// as close to up as possible. A degenerate dir yields Identity; a dir
// parallel to up swaps in +Z as the reference axis.
func LookRotation(dir, up mgl64.Vec3) Quat {
	if IsDegenerate(dir) {
		return Identity
	}
	back := dir.Normalize().Mul(-1)
	right := up.Cross(back)
	if IsDegenerate(right) {
		right = mgl64.Vec3{0, 0, 1}.Cross(back)
	}
	right = right.Normalize()
	newUp := back.Cross(right)
	m := mgl64.Mat3FromCols(right, newUp, back)
	return QuatFromMgl(mgl64.Mat4ToQuat(m.Mat4()).Normalize())
}

// LookAt returns the rotation for a camera at eye facing target.
func LookAt(eye, target mgl64.Vec3) Quat {
	return LookRotation(target.Sub(eye), WorldUp)
}
