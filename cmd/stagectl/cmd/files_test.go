package cmd

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/curve"
)

const shotsYAML = `
shots:
  - id: opening
    camera_path:
      mode: orbit
      focus: ball
      radius: 8
      elevation: 20
    start_time: 0
    end_time: 4
  - id: push-in
    camera_path:
      mode: dolly
      from_position: [0, 2, 10]
      to_position: [0, 2, 4]
      look_at: [0, 0, 0]
    start_time: 4
    end_time: 6
    easing: linear
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadShots(t *testing.T) {
	t.Run("decodes in file order", func(t *testing.T) {
		shots, err := loadShots(writeFile(t, "shots.yaml", shotsYAML))
		require.NoError(t, err)
		require.Len(t, shots, 2)

		assert.Equal(t, "opening", shots[0].ID)
		assert.Equal(t, curve.DefaultEasing, shots[0].Easing)
		orbit, ok := shots[0].Path.(domain.OrbitPath)
		require.True(t, ok)
		assert.Equal(t, 8.0, orbit.Radius)

		dolly, ok := shots[1].Path.(domain.DollyPath)
		require.True(t, ok)
		assert.Equal(t, mgl64.Vec3{0, 2, 10}, dolly.From)
		assert.Equal(t, curve.Linear, shots[1].Easing)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		content := `
shots:
  - {id: a, camera_path: {mode: static, position: [0, 0, 1], look_at: [0, 0, 0]}, start_time: 0, end_time: 1}
  - {id: a, camera_path: {mode: static, position: [0, 0, 1], look_at: [0, 0, 0]}, start_time: 1, end_time: 2}
`
		_, err := loadShots(writeFile(t, "dup.yaml", content))
		assert.ErrorContains(t, err, "duplicate id")
	})

	t.Run("rejects unknown modes", func(t *testing.T) {
		content := `
shots:
  - {id: a, camera_path: {mode: zoom}, start_time: 0, end_time: 1}
`
		_, err := loadShots(writeFile(t, "bad.yaml", content))
		assert.ErrorContains(t, err, "shot 0")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := loadShots(writeFile(t, "empty.yaml", "shots: []\n"))
		assert.Error(t, err)
	})
}

func TestWriteShotsRoundTrip(t *testing.T) {
	shots, err := loadShots(writeFile(t, "shots.yaml", shotsYAML))
	require.NoError(t, err)

	data, err := writeShots(shots)
	require.NoError(t, err)

	again, err := loadShots(writeFile(t, "normalized.yaml", string(data)))
	require.NoError(t, err)
	assert.Equal(t, shots, again)
}

func TestLoadWorld(t *testing.T) {
	content := `
ball:
  position: [1, 2, 3]
  velocity: [0, -1, 0]
crate:
  position: [4, 0, 0]
`
	world, err := loadWorld(writeFile(t, "world.yaml", content))
	require.NoError(t, err)

	ball, ok := world.PositionOf("ball")
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, ball.Position)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, ball.Velocity)

	empty, err := loadWorld("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = loadWorld(writeFile(t, "nan.yaml", "ball:\n  position: [.nan, 0, 0]\n"))
	assert.ErrorContains(t, err, "non-finite")
}

func TestCheckReferences(t *testing.T) {
	shots, err := loadShots(writeFile(t, "shots.yaml", shotsYAML))
	require.NoError(t, err)

	t.Run("focus in the world", func(t *testing.T) {
		assert.NoError(t, checkReferences(shots, domain.WorldSnapshot{"ball": {}}, nil))
	})

	t.Run("focus among baked tracks", func(t *testing.T) {
		anims := map[string]*domain.BakedAnimation{"ball": {ObjectID: "ball"}}
		assert.NoError(t, checkReferences(shots, domain.WorldSnapshot{}, anims))
	})

	t.Run("missing focus", func(t *testing.T) {
		err := checkReferences(shots, domain.WorldSnapshot{"crate": {}}, nil)
		assert.ErrorContains(t, err, `shot "opening": object "ball"`)
	})
}

func TestRunEvaluateRejectsNonFiniteTime(t *testing.T) {
	evalShots = writeFile(t, "shots.yaml", shotsYAML)
	evalTime = math.NaN()
	t.Cleanup(func() { evalShots, evalTime = "", 0 })

	err := runEvaluate(evaluateCmd, nil)
	assert.ErrorContains(t, err, "finite")
}

func TestAnimationFiles(t *testing.T) {
	dir := t.TempDir()
	anims := map[string]*domain.BakedAnimation{
		"ball": {
			ObjectID: "ball",
			Source:   "abc",
			FPS:      10,
			Duration: 0.1,
			Frames: []domain.Keyframe{
				{Time: 0, Position: mgl64.Vec3{0, 0, 0}, Rotation: curve.Quat{0, 0, 0, 1}},
				{Time: 0.1, Position: mgl64.Vec3{1, 0, 0}, Rotation: curve.Quat{0, 0, 0, 1}},
			},
		},
	}

	written, err := writeAnimations(dir, anims)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "ball.json")}, written)

	loaded, err := loadAnimations(dir)
	require.NoError(t, err)
	require.Contains(t, loaded, "ball")
	assert.Equal(t, anims["ball"].Frames, loaded["ball"].Frames)
	assert.Equal(t, "abc", loaded["ball"].Source)
}
