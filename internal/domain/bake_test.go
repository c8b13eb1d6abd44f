package domain

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

func TestParseBinding(t *testing.T) {
	cases := []struct {
		in   string
		sim  string
		body string
	}{
		{"rapier://sim-abc/body-ball", "abc", "ball"},
		{"rapier://abc/ball", "abc", "ball"},
		{"body-ball", "", "ball"},
		{"ball", "", "ball"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			sim, body, err := ParseBinding(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.sim, sim)
			assert.Equal(t, tc.body, body)
		})
	}

	for _, bad := range []string{"", "rapier://sim-abc", "rapier://sim-/body-x", "rapier://sim-a/body-", "a/b"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, _, err := ParseBinding(bad)
			assert.True(t, apperrors.IsValidation(err))
		})
	}

	assert.Equal(t, "rapier://sim-abc/body-ball", FormatBinding("abc", "ball"))
}

func TestBakeRequestBindings(t *testing.T) {
	t.Run("resolves sorted bindings", func(t *testing.T) {
		req := BakeRequest{
			SceneID:      "scene",
			SimulationID: "abc",
			Bodies:       map[string]string{"wall": "body-7", "ball": "rapier://sim-abc/body-3"},
		}
		got, err := req.Bindings()
		require.NoError(t, err)
		assert.Equal(t, []BodyBinding{
			{ObjectID: "ball", SimulationID: "abc", BodyID: "3"},
			{ObjectID: "wall", SimulationID: "abc", BodyID: "7"},
		}, got)
	})

	t.Run("rejects bindings to another simulation", func(t *testing.T) {
		req := BakeRequest{SceneID: "scene", SimulationID: "abc", Bodies: map[string]string{"ball": "rapier://sim-xyz/body-3"}}
		_, err := req.Bindings()
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("normalize fills defaults", func(t *testing.T) {
		req := BakeRequest{}
		req.Normalize()
		assert.Equal(t, DefaultFPS, req.FPS)
		assert.Equal(t, 10.0, req.Duration)
	})
}

func TestFrameCount(t *testing.T) {
	assert.Equal(t, 3, FrameCount(1.0, 2))
	assert.Equal(t, 601, FrameCount(10, 60))
	assert.Equal(t, 4, FrameCount(0.3, 10))
	assert.Equal(t, 1, FrameCount(0.01, 60))
}

func TestCheckGrid(t *testing.T) {
	assert.NoError(t, CheckGrid(10, 60))
	assert.NoError(t, CheckGrid(MaxDuration, 60))

	cases := []struct {
		name     string
		duration float64
		fps      int
	}{
		{"zero fps", 1, 0},
		{"fps above limit", 1, MaxFPS + 1},
		{"zero duration", 0, 60},
		{"nan duration", math.NaN(), 60},
		{"infinite duration", math.Inf(1), 60},
		{"overflowing duration", 1e300, 60},
		{"duration above limit", MaxDuration + 1, 1},
		{"too many frames", MaxDuration, MaxFPS},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckGrid(tc.duration, tc.fps)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestBakeResultPartition(t *testing.T) {
	r := BakeResult{Status: map[string]BodyStatus{
		"a": {State: BodyStateOK},
		"b": {State: BodyStateFailed},
		"c": {State: BodyStateCanceled},
	}}
	assert.Equal(t, []string{"a"}, r.Succeeded())
	assert.Equal(t, []string{"b", "c"}, r.Failed())
}

func TestBakeRunComplete(t *testing.T) {
	req := &BakeRequest{SceneID: "s", SimulationID: "sim", Bodies: map[string]string{"a": "1", "b": "2"}}
	req.Normalize()

	tests := []struct {
		name   string
		status map[string]BodyStatus
		err    error
		want   RunStatus
	}{
		{
			name:   "all ok",
			status: map[string]BodyStatus{"a": {State: BodyStateOK}, "b": {State: BodyStateOK}},
			want:   RunStatusSucceeded,
		},
		{
			name:   "one failed",
			status: map[string]BodyStatus{"a": {State: BodyStateOK}, "b": {State: BodyStateFailed}},
			want:   RunStatusPartial,
		},
		{
			name:   "all failed",
			status: map[string]BodyStatus{"a": {State: BodyStateFailed}, "b": {State: BodyStateFailed}},
			want:   RunStatusFailed,
		},
		{
			name:   "canceled",
			status: map[string]BodyStatus{"a": {State: BodyStateOK}, "b": {State: BodyStateCanceled}},
			err:    context.Canceled,
			want:   RunStatusCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewBakeRun(req)
			assert.Equal(t, RunStatusRunning, run.Status)
			assert.Equal(t, 60, run.FPS)

			run.Complete(&BakeResult{Status: tt.status}, tt.err)
			assert.Equal(t, tt.want, run.Status)
			require.NotNil(t, run.FinishedAt)
			assert.Equal(t, len(tt.status), run.Succeeded+run.Failed)
		})
	}

	t.Run("no result", func(t *testing.T) {
		run := NewBakeRun(req)
		run.Complete(nil, errors.New("boom"))
		assert.Equal(t, RunStatusFailed, run.Status)
		assert.Equal(t, "boom", run.Error)
	})
}
