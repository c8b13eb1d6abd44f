package domain

import "github.com/go-gl/mathgl/mgl64"

// ObjectState is the pose information a camera path may read for an object.
type ObjectState struct {
	Position mgl64.Vec3 `json:"position" yaml:"position"`
	Velocity mgl64.Vec3 `json:"velocity,omitempty" yaml:"velocity,omitempty"`
}

// WorldState resolves object ids at one instant. Implementations must be
// safe for concurrent reads.
type WorldState interface {
	PositionOf(objectID string) (ObjectState, bool)
}

// WorldSnapshot is a map-backed WorldState.
type WorldSnapshot map[string]ObjectState

// PositionOf implements WorldState
func (w WorldSnapshot) PositionOf(objectID string) (ObjectState, bool) {
	s, ok := w[objectID]
	return s, ok
}
