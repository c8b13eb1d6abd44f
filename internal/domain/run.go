package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a recorded bake.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// BakeRun is the persisted record of one bake.
type BakeRun struct {
	ID           uuid.UUID             `json:"id"`
	SceneID      string                `json:"scene_id"`
	SimulationID string                `json:"simulation_id"`
	FPS          int                   `json:"fps"`
	Duration     float64               `json:"duration"`
	Status       RunStatus             `json:"status"`
	Succeeded    int                   `json:"succeeded"`
	Failed       int                   `json:"failed"`
	Bodies       map[string]BodyStatus `json:"bodies"`
	Error        string                `json:"error,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   *time.Time            `json:"finished_at,omitempty"`
}

// NewBakeRun starts a run record for a normalized request.
func NewBakeRun(req *BakeRequest) *BakeRun {
	return &BakeRun{
		ID:           uuid.New(),
		SceneID:      req.SceneID,
		SimulationID: req.SimulationID,
		FPS:          req.FPS,
		Duration:     req.Duration,
		Status:       RunStatusRunning,
		Bodies:       map[string]BodyStatus{},
		StartedAt:    time.Now().UTC(),
	}
}

// Complete fills the outcome from a result. err is the error Bake returned
// alongside the result, if any.
func (r *BakeRun) Complete(res *BakeResult, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
	if res == nil {
		r.Status = RunStatusFailed
		return
	}

	r.Bodies = res.Status
	r.Succeeded = len(res.Succeeded())
	r.Failed = len(res.Failed())

	switch {
	case err != nil && r.hasCanceled():
		r.Status = RunStatusCanceled
	case r.Failed == 0:
		r.Status = RunStatusSucceeded
	case r.Succeeded == 0:
		r.Status = RunStatusFailed
	default:
		r.Status = RunStatusPartial
	}
}

func (r *BakeRun) hasCanceled() bool {
	for _, s := range r.Bodies {
		if s.State == BodyStateCanceled {
			return true
		}
	}
	return false
}
