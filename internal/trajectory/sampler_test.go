package trajectory

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

func assertVec(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-9), "want %v, got %v", want, got)
}

func sample(time float64, pos mgl64.Vec3) domain.RawSample {
	return domain.RawSample{Time: time, Position: pos, Rotation: curve.Identity}
}

func TestResampleFallingBall(t *testing.T) {
	raw := []domain.RawSample{
		sample(0, mgl64.Vec3{0, 5, 0}),
		sample(1, mgl64.Vec3{0, 0, 0}),
	}
	anim, err := Resample("ball", raw, 2, 1.0)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 3)

	want := []mgl64.Vec3{{0, 5, 0}, {0, 2.5, 0}, {0, 0, 0}}
	for i, f := range anim.Frames {
		assert.Equal(t, float64(i)*0.5, f.Time)
		assertVec(t, want[i], f.Position)
	}
	assert.Equal(t, "ball", anim.ObjectID)
	assert.Equal(t, 2, anim.FPS)
}

func TestResampleRoundTrip(t *testing.T) {
	const fps = 10
	raw := make([]domain.RawSample, 21)
	for i := range raw {
		ti := float64(i) / fps
		raw[i] = domain.RawSample{
			Time:     ti,
			Position: mgl64.Vec3{ti, math.Sin(ti), -ti * ti},
			Rotation: curve.QuatFromMgl(mgl64.QuatRotate(ti, mgl64.Vec3{0, 1, 0})),
			Velocity: mgl64.Vec3{1, math.Cos(ti), -2 * ti},
		}
	}

	anim, err := Resample("box", raw, fps, 2.0)
	require.NoError(t, err)
	require.Len(t, anim.Frames, len(raw))
	for i, f := range anim.Frames {
		assertVec(t, raw[i].Position, f.Position)
		assertVec(t, raw[i].Velocity, f.Velocity)
		assert.Equal(t, raw[i].Rotation, f.Rotation)
	}
}

func TestResampleClampsOutsideCoverage(t *testing.T) {
	rotA := curve.QuatFromMgl(mgl64.QuatRotate(0.3, mgl64.Vec3{1, 0, 0}))
	rotB := curve.QuatFromMgl(mgl64.QuatRotate(1.1, mgl64.Vec3{1, 0, 0}))
	raw := []domain.RawSample{
		{Time: 0.5, Position: mgl64.Vec3{1, 1, 1}, Rotation: rotA, Velocity: mgl64.Vec3{3, 0, 0}},
		{Time: 1.0, Position: mgl64.Vec3{2, 1, 1}, Rotation: rotB, Velocity: mgl64.Vec3{3, 0, 0}},
	}

	anim, err := Resample("ball", raw, 4, 2.0)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 9)

	for _, f := range anim.Frames[:2] {
		assertVec(t, mgl64.Vec3{1, 1, 1}, f.Position)
		assert.Equal(t, rotA, f.Rotation)
		assert.Equal(t, mgl64.Vec3{}, f.Velocity)
	}
	for _, f := range anim.Frames[5:] {
		assertVec(t, mgl64.Vec3{2, 1, 1}, f.Position)
		assert.Equal(t, rotB, f.Rotation)
		assert.Equal(t, mgl64.Vec3{}, f.Velocity)
	}
	// Inside coverage the source velocity is kept.
	assertVec(t, mgl64.Vec3{3, 0, 0}, anim.Frames[3].Velocity)
}

func TestResampleSlerpsRotation(t *testing.T) {
	raw := []domain.RawSample{
		{Time: 0, Rotation: curve.Identity},
		{Time: 1, Rotation: curve.QuatFromMgl(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}))},
	}
	anim, err := Resample("spinner", raw, 2, 1)
	require.NoError(t, err)
	want := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})
	assert.True(t, want.ApproxEqualThreshold(anim.Frames[1].Rotation.Mgl(), 1e-9))
}

func TestResampleDuplicateTimestamps(t *testing.T) {
	raw := []domain.RawSample{
		sample(0, mgl64.Vec3{0, 0, 0}),
		sample(0.5, mgl64.Vec3{1, 0, 0}),
		sample(0.5, mgl64.Vec3{9, 0, 0}),
		sample(1, mgl64.Vec3{2, 0, 0}),
	}
	anim, err := Resample("ball", raw, 2, 1)
	require.NoError(t, err)
	assertVec(t, mgl64.Vec3{1, 0, 0}, anim.Frames[1].Position)
}

func TestResampleErrors(t *testing.T) {
	good := []domain.RawSample{sample(0, mgl64.Vec3{})}

	t.Run("empty trajectory", func(t *testing.T) {
		_, err := Resample("ball", nil, 60, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsEmptyTrajectory(err))
	})

	t.Run("non-positive fps", func(t *testing.T) {
		_, err := Resample("ball", good, 0, 1)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("non-positive duration", func(t *testing.T) {
		_, err := Resample("ball", good, 60, 0)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("duration too large for the grid", func(t *testing.T) {
		for _, d := range []float64{1e300, 1e7} {
			_, err := Resample("ball", good, 60, d)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "duration %g", d)
			assert.Equal(t, "ball", apperrors.GetAppError(err).Details["object_id"])
		}
	})

	t.Run("timestamps going backwards", func(t *testing.T) {
		raw := []domain.RawSample{sample(1, mgl64.Vec3{}), sample(0.5, mgl64.Vec3{})}
		_, err := Resample("ball", raw, 60, 1)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("non-finite position", func(t *testing.T) {
		raw := []domain.RawSample{sample(0, mgl64.Vec3{math.NaN(), 0, 0})}
		_, err := Resample("ball", raw, 60, 1)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestResampleSingleSampleHolds(t *testing.T) {
	raw := []domain.RawSample{{Time: 0.25, Position: mgl64.Vec3{4, 4, 4}, Rotation: curve.Identity, Velocity: mgl64.Vec3{1, 0, 0}}}
	anim, err := Resample("ball", raw, 4, 0.5)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 3)
	assert.Equal(t, mgl64.Vec3{}, anim.Frames[0].Velocity)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, anim.Frames[1].Velocity)
	assert.Equal(t, mgl64.Vec3{}, anim.Frames[2].Velocity)
	for _, f := range anim.Frames {
		assert.Equal(t, mgl64.Vec3{4, 4, 4}, f.Position)
	}
}
