package domain

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

func f(v float64) *float64 { return &v }

func v3(x, y, z float64) *mgl64.Vec3 { return &mgl64.Vec3{x, y, z} }

func TestCameraPathSpecDecode(t *testing.T) {
	t.Run("orbit with defaults", func(t *testing.T) {
		p, err := (&CameraPathSpec{Mode: PathModeOrbit, Focus: "ball", Radius: f(8)}).Decode()
		require.NoError(t, err)
		assert.Equal(t, OrbitPath{Focus: "ball", Radius: 8, Elevation: 0, Speed: DefaultOrbitSpeed}, p)
	})

	t.Run("chase with defaults", func(t *testing.T) {
		p, err := (&CameraPathSpec{Mode: PathModeChase, Focus: "car"}).Decode()
		require.NoError(t, err)
		chase := p.(ChasePath)
		assert.Equal(t, DefaultChaseOffset, chase.Offset)
		assert.Equal(t, DefaultChaseDamping, chase.Damping)
		assert.Equal(t, DefaultChaseFrameInterval, chase.FrameInterval)
	})

	t.Run("static", func(t *testing.T) {
		p, err := (&CameraPathSpec{Mode: PathModeStatic, Position: v3(0, 5, 10), LookAt: v3(1, 0, 0)}).Decode()
		require.NoError(t, err)
		assert.Equal(t, StaticPath{Position: mgl64.Vec3{0, 5, 10}, LookAt: mgl64.Vec3{1, 0, 0}}, p)
	})

	t.Run("crane height defaults to radius", func(t *testing.T) {
		p, err := (&CameraPathSpec{Mode: PathModeCrane, Pivot: v3(0, 0, 0), Radius: f(4)}).Decode()
		require.NoError(t, err)
		assert.Equal(t, [2]float64{0, 4}, p.(CranePath).HeightRange)
		assert.Equal(t, DefaultCraneArc, p.(CranePath).Arc)
	})

	t.Run("track keeps optional focus", func(t *testing.T) {
		p, err := (&CameraPathSpec{
			Mode:      PathModeTrack,
			Focus:     "ball",
			Waypoints: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}},
		}).Decode()
		require.NoError(t, err)
		assert.Equal(t, []string{"ball"}, References(p))
	})

	errCases := []struct {
		name string
		spec CameraPathSpec
	}{
		{"unknown mode", CameraPathSpec{Mode: "spiral"}},
		{"orbit without focus", CameraPathSpec{Mode: PathModeOrbit, Radius: f(3)}},
		{"orbit with zero radius", CameraPathSpec{Mode: PathModeOrbit, Focus: "ball", Radius: f(0)}},
		{"orbit with foreign field", CameraPathSpec{Mode: PathModeOrbit, Focus: "ball", Radius: f(3), FromPosition: v3(1, 1, 1)}},
		{"static without position", CameraPathSpec{Mode: PathModeStatic, LookAt: v3(0, 0, 0)}},
		{"static without look_at", CameraPathSpec{Mode: PathModeStatic, Position: v3(0, 5, 10)}},
		{"chase damping of one", CameraPathSpec{Mode: PathModeChase, Focus: "car", Damping: f(1)}},
		{"chase negative interval", CameraPathSpec{Mode: PathModeChase, Focus: "car", FrameInterval: f(-1)}},
		{"dolly without look_at", CameraPathSpec{Mode: PathModeDolly, FromPosition: v3(0, 0, 0), ToPosition: v3(1, 0, 0)}},
		{"flythrough with one waypoint", CameraPathSpec{Mode: PathModeFlythrough, Waypoints: []mgl64.Vec3{{0, 0, 0}}}},
		{"nan position", CameraPathSpec{Mode: PathModeStatic, Position: v3(math.NaN(), 0, 0), LookAt: v3(0, 0, 0)}},
		{"infinite radius", CameraPathSpec{Mode: PathModeCrane, Pivot: v3(0, 0, 0), Radius: f(math.Inf(1))}},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.spec.Decode()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestEncodeCameraPathRoundTrip(t *testing.T) {
	paths := []CameraPath{
		OrbitPath{Focus: "ball", Radius: 8, Elevation: 30, Speed: 0.1},
		StaticPath{Position: mgl64.Vec3{1, 2, 3}, LookAt: mgl64.Vec3{0, 0, 0}},
		ChasePath{Focus: "car", Offset: mgl64.Vec3{0, 2, 6}, Damping: 0.5, FrameInterval: 0.02, LookAhead: 0.25},
		DollyPath{From: mgl64.Vec3{0, 0, 0}, To: mgl64.Vec3{10, 0, 0}, LookAt: mgl64.Vec3{5, 0, -5}},
		FlythroughPath{Waypoints: []mgl64.Vec3{{0, 0, 0}, {1, 1, 0}, {2, 0, 0}}},
		CranePath{Pivot: mgl64.Vec3{0, 0, 0}, Radius: 5, StartAngle: 10, Arc: 120, HeightRange: [2]float64{1, 6}},
		TrackPath{Waypoints: []mgl64.Vec3{{0, 0, 0}, {3, 0, 4}}},
	}
	for _, p := range paths {
		t.Run(string(p.Mode()), func(t *testing.T) {
			spec, err := EncodeCameraPath(p)
			require.NoError(t, err)
			decoded, err := spec.Decode()
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}
