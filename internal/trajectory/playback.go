package trajectory

import (
	"github.com/keyframestudio/stage/internal/domain"
)

func asSamples(frames []domain.Keyframe) []domain.RawSample {
	out := make([]domain.RawSample, len(frames))
	for i, f := range frames {
		out[i] = domain.RawSample(f)
	}
	return out
}

// Scene plays back a set of baked animations as world state.
type Scene struct {
	tracks map[string][]domain.RawSample
	static domain.WorldSnapshot
}

// NewScene indexes animations by object id. Objects in static stay fixed
// unless an animation overrides them.
func NewScene(anims map[string]*domain.BakedAnimation, static domain.WorldSnapshot) *Scene {
	s := &Scene{tracks: make(map[string][]domain.RawSample, len(anims)), static: static}
	for id, a := range anims {
		if a != nil && len(a.Frames) > 0 {
			s.tracks[id] = asSamples(a.Frames)
		}
	}
	return s
}

// At returns the world snapshot at scene time t. Tracks are read with the
// same hold and blend rules as resampling.
func (s *Scene) At(t float64) domain.WorldState {
	w := make(domain.WorldSnapshot, len(s.tracks)+len(s.static))
	for id, st := range s.static {
		w[id] = st
	}
	for id, samples := range s.tracks {
		kf := At(samples, t)
		w[id] = domain.ObjectState{Position: kf.Position, Velocity: kf.Velocity}
	}
	return w
}
