package camera

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

func dollyShot(start, end float64, easing curve.Easing) domain.Shot {
	return domain.Shot{
		ID:     "dolly",
		Path:   domain.DollyPath{From: mgl64.Vec3{0, 0, 0}, To: mgl64.Vec3{10, 0, 0}, LookAt: mgl64.Vec3{5, 0, -5}},
		Start:  start,
		End:    end,
		Easing: easing,
	}
}

func TestMapShotTime(t *testing.T) {
	shot := dollyShot(2, 6, curve.Linear)

	t.Run("inactive before start, at end and at non-finite times", func(t *testing.T) {
		for _, T := range []float64{0, 1.999, 6, 7, math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, ok := MapShotTime(shot, T)
			assert.False(t, ok, "T=%v", T)
		}
	})

	t.Run("linear easing leaves raw progress unchanged", func(t *testing.T) {
		for _, T := range []float64{2, 2.5, 3, 4.75, 5.999} {
			st, ok := MapShotTime(shot, T)
			require.True(t, ok)
			assert.GreaterOrEqual(t, st.Raw, 0.0)
			assert.LessOrEqual(t, st.Raw, 1.0)
			assert.Equal(t, st.Raw, st.Eased)
			assert.InDelta(t, T-2, st.Elapsed, 1e-12)
		}
	})

	t.Run("eased progress uses the shot easing", func(t *testing.T) {
		eased := dollyShot(2, 6, curve.EaseInCubic)
		st, ok := MapShotTime(eased, 4)
		require.True(t, ok)
		assert.InDelta(t, 0.5, st.Raw, 1e-12)
		assert.InDelta(t, 0.125, st.Eased, 1e-12)
	})
}

func TestActiveShot(t *testing.T) {
	shots := []domain.Shot{dollyShot(0, 5, curve.Linear), dollyShot(5, 10, curve.Linear)}
	shots[1].ID = "second"

	s, st, ok := ActiveShot(shots, 5)
	require.True(t, ok)
	assert.Equal(t, "second", s.ID)
	assert.Equal(t, 0.0, st.Raw)

	_, _, ok = ActiveShot(shots, 10)
	assert.False(t, ok)
}

func TestEvaluateShot(t *testing.T) {
	shot := dollyShot(0, 4, curve.Linear)

	tr, _, active, err := EvaluateShot(shot, nil, 2, ChaseState{})
	require.NoError(t, err)
	require.True(t, active)
	assertVec(t, mgl64.Vec3{5, 0, 0}, tr.Position)

	_, _, active, err = EvaluateShot(shot, nil, 4, ChaseState{})
	require.NoError(t, err)
	assert.False(t, active)

	t.Run("non-finite time is rejected", func(t *testing.T) {
		orbit := domain.Shot{
			ID:     "orbit",
			Path:   domain.OrbitPath{Focus: "ball", Radius: 3, Speed: 0.1},
			Start:  0,
			End:    5,
			Easing: curve.Linear,
		}
		world := domain.WorldSnapshot{"ball": {}}
		for _, T := range []float64{math.NaN(), math.Inf(1)} {
			_, _, active, err := EvaluateShot(orbit, world, T, ChaseState{})
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.False(t, active)
		}
	})
}

func TestSampleShot(t *testing.T) {
	t.Run("samples the half-open interval", func(t *testing.T) {
		frames, err := SampleShot(dollyShot(1, 2, curve.Linear), StaticWorld(nil), 4)
		require.NoError(t, err)
		require.Len(t, frames, 4)
		assert.Equal(t, 1.0, frames[0].Time)
		assert.Equal(t, 1.75, frames[3].Time)
		assertVec(t, mgl64.Vec3{7.5, 0, 0}, frames[3].Position)
	})

	t.Run("threads chase state", func(t *testing.T) {
		shot := domain.Shot{
			ID:     "chase",
			Path:   domain.ChasePath{Focus: "car", Offset: mgl64.Vec3{0, 0, 0}, Damping: 0.5, FrameInterval: 0.5},
			Start:  0,
			End:    1.5,
			Easing: curve.Linear,
		}
		// The car jumps from x=0 to x=8 after the first frame.
		worldAt := func(T float64) domain.WorldState {
			if T == 0 {
				return domain.WorldSnapshot{"car": {Position: mgl64.Vec3{0, 0, 0}}}
			}
			return domain.WorldSnapshot{"car": {Position: mgl64.Vec3{8, 0, 0}}}
		}
		frames, err := SampleShot(shot, worldAt, 2)
		require.NoError(t, err)
		require.Len(t, frames, 3)
		assertVec(t, mgl64.Vec3{0, 0, 0}, frames[0].Position)
		assertVec(t, mgl64.Vec3{4, 0, 0}, frames[1].Position)
		assertVec(t, mgl64.Vec3{6, 0, 0}, frames[2].Position)
	})

	t.Run("propagates unresolved references", func(t *testing.T) {
		shot := domain.Shot{
			ID:     "orbit",
			Path:   domain.OrbitPath{Focus: "ghost", Radius: 3},
			Start:  0,
			End:    1,
			Easing: curve.Linear,
		}
		_, err := SampleShot(shot, StaticWorld(domain.WorldSnapshot{}), 10)
		assert.True(t, apperrors.IsUnresolvedReference(err))
	})

	t.Run("rejects non-positive fps", func(t *testing.T) {
		_, err := SampleShot(dollyShot(0, 1, curve.Linear), StaticWorld(nil), 0)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("rejects shots too long to sample", func(t *testing.T) {
		_, err := SampleShot(dollyShot(0, 1e300, curve.Linear), StaticWorld(nil), 60)
		assert.True(t, apperrors.IsValidation(err))

		_, err = SampleShot(dollyShot(0, domain.MaxDuration, curve.Linear), StaticWorld(nil), domain.MaxFPS)
		assert.True(t, apperrors.IsValidation(err))
	})
}
