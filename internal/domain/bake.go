package domain

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

const (
	// DefaultFPS is the bake frame rate when a request leaves it unset.
	DefaultFPS = 60
	// DefaultBakeSteps sizes a bake that does not name a duration.
	DefaultBakeSteps = 600
	// MaxFPS bounds the output grid.
	MaxFPS = 240
	// MaxDuration bounds a baked or sampled interval, in seconds.
	MaxDuration = 3600
	// MaxFrames bounds the length of one keyframe track.
	MaxFrames = 1 << 18

	bindingScheme = "rapier://"
	simPrefix     = "sim-"
	bodyPrefix    = "body-"
)

// BodyBinding ties a scene object to a body in a physics simulation.
type BodyBinding struct {
	ObjectID     string `json:"object_id"`
	SimulationID string `json:"simulation_id"`
	BodyID       string `json:"body_id"`
}

// ParseBinding accepts "rapier://sim-<sim>/body-<body>", "body-<body>" or a
// bare body id. The simulation id is empty when the binding does not carry one.
func ParseBinding(binding string) (simulationID, bodyID string, err error) {
	raw := strings.TrimSpace(binding)
	malformed := apperrors.Validationf("malformed physics binding %q", binding)
	if raw == "" {
		return "", "", apperrors.Validation("empty physics binding")
	}

	if !strings.HasPrefix(raw, bindingScheme) {
		if strings.Contains(raw, "/") {
			return "", "", malformed
		}
		bodyID = strings.TrimPrefix(raw, bodyPrefix)
		if bodyID == "" {
			return "", "", malformed
		}
		return "", bodyID, nil
	}

	parts := strings.Split(strings.TrimPrefix(raw, bindingScheme), "/")
	if len(parts) != 2 {
		return "", "", malformed
	}
	simulationID = strings.TrimPrefix(parts[0], simPrefix)
	bodyID = strings.TrimPrefix(parts[1], bodyPrefix)
	if simulationID == "" || bodyID == "" {
		return "", "", malformed
	}
	return simulationID, bodyID, nil
}

// FormatBinding renders the canonical binding string.
func FormatBinding(simulationID, bodyID string) string {
	return fmt.Sprintf("%s%s%s/%s%s", bindingScheme, simPrefix, simulationID, bodyPrefix, bodyID)
}

// BakeRequest asks for one keyframe track per bound object.
type BakeRequest struct {
	SceneID      string `json:"scene_id" validate:"required"`
	SimulationID string `json:"simulation_id" validate:"required"`
	// Bodies maps scene object id to a physics binding or body id.
	Bodies   map[string]string `json:"bodies" validate:"required,min=1"`
	FPS      int               `json:"fps,omitempty" validate:"gte=0,lte=240"`
	Duration float64           `json:"duration,omitempty" validate:"gte=0,lte=3600"`
}

// Normalize fills FPS and Duration defaults.
func (r *BakeRequest) Normalize() {
	if r.FPS == 0 {
		r.FPS = DefaultFPS
	}
	if r.Duration == 0 {
		r.Duration = float64(DefaultBakeSteps) / float64(r.FPS)
	}
}

// Bindings resolves every body and checks it belongs to the request's
// simulation. The result is ordered by object id.
func (r *BakeRequest) Bindings() ([]BodyBinding, error) {
	if len(r.Bodies) == 0 {
		return nil, apperrors.Validation("bake request names no bodies")
	}
	objectIDs := make([]string, 0, len(r.Bodies))
	for id := range r.Bodies {
		objectIDs = append(objectIDs, id)
	}
	sort.Strings(objectIDs)

	out := make([]BodyBinding, 0, len(objectIDs))
	for _, objectID := range objectIDs {
		if objectID == "" {
			return nil, apperrors.Validation("bake request contains an empty object id")
		}
		sim, body, err := ParseBinding(r.Bodies[objectID])
		if err != nil {
			return nil, apperrors.GetAppError(err).WithDetail("object_id", objectID)
		}
		if sim != "" && sim != r.SimulationID {
			return nil, apperrors.Validationf("object %q is bound to simulation %q, not %q", objectID, sim, r.SimulationID)
		}
		out = append(out, BodyBinding{ObjectID: objectID, SimulationID: r.SimulationID, BodyID: body})
	}
	return out, nil
}

// BodyState is the outcome of one body's bake.
type BodyState string

const (
	BodyStateOK       BodyState = "ok"
	BodyStateFailed   BodyState = "failed"
	BodyStateCanceled BodyState = "canceled"
)

// BodyStatus records how one body's bake ended.
type BodyStatus struct {
	ObjectID  string    `json:"object_id"`
	BodyID    string    `json:"body_id"`
	Binding   string    `json:"binding,omitempty"`
	State     BodyState `json:"state"`
	ErrorCode string    `json:"error_code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Frames    int       `json:"frames,omitempty"`
}

// BakeResult holds the animations that baked and a status for every
// requested object. Failed objects appear only in Status.
type BakeResult struct {
	SceneID      string                     `json:"scene_id"`
	SimulationID string                     `json:"simulation_id"`
	FPS          int                        `json:"fps"`
	Duration     float64                    `json:"duration"`
	Animations   map[string]*BakedAnimation `json:"animations"`
	Status       map[string]BodyStatus      `json:"status"`
}

// Succeeded lists object ids that baked, sorted.
func (r *BakeResult) Succeeded() []string {
	return r.idsWhere(func(s BodyStatus) bool { return s.State == BodyStateOK })
}

// Failed lists object ids that did not bake, sorted.
func (r *BakeResult) Failed() []string {
	return r.idsWhere(func(s BodyStatus) bool { return s.State != BodyStateOK })
}

func (r *BakeResult) idsWhere(keep func(BodyStatus) bool) []string {
	var ids []string
	for id, s := range r.Status {
		if keep(s) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
