package trajectory

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyframestudio/stage/internal/domain"
)

func TestSceneAt(t *testing.T) {
	anim, err := Resample("ball", []domain.RawSample{
		sample(0, mgl64.Vec3{0, 0, 0}),
		sample(2, mgl64.Vec3{4, 0, 0}),
	}, 1, 2)
	require.NoError(t, err)

	scene := NewScene(
		map[string]*domain.BakedAnimation{"ball": anim},
		domain.WorldSnapshot{
			"ball":  {Position: mgl64.Vec3{9, 9, 9}},
			"table": {Position: mgl64.Vec3{0, -1, 0}},
		},
	)

	w := scene.At(1.5)
	ball, ok := w.PositionOf("ball")
	require.True(t, ok)
	assertVec(t, mgl64.Vec3{3, 0, 0}, ball.Position)

	table, ok := w.PositionOf("table")
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, table.Position)

	_, ok = w.PositionOf("ghost")
	assert.False(t, ok)
}

func TestSceneSkipsEmptyTracks(t *testing.T) {
	scene := NewScene(
		map[string]*domain.BakedAnimation{"ball": {ObjectID: "ball"}, "cube": nil},
		domain.WorldSnapshot{"ball": {Position: mgl64.Vec3{1, 2, 3}}},
	)

	ball, ok := scene.At(0).PositionOf("ball")
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, ball.Position)

	_, ok = scene.At(0).PositionOf("cube")
	assert.False(t, ok)
}
