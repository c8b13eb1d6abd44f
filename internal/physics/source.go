// Package physics fetches body trajectories from an external simulation.
package physics

import (
	"context"
	"math"

	"github.com/keyframestudio/stage/internal/domain"
)

// TimeRange describes the window a bake wants covered.
type TimeRange struct {
	Duration float64
	FPS      int
}

// Steps is the number of simulation steps of 1/FPS covering Duration.
func (r TimeRange) Steps() int {
	return int(math.Floor(r.Duration*float64(r.FPS) + 1e-9))
}

// DT is the step length in seconds.
func (r TimeRange) DT() float64 {
	return 1 / float64(r.FPS)
}

// Source supplies raw trajectories. Implementations may return fewer
// samples than the range covers. Errors must be classified with
// apperrors.TransientFetch or apperrors.PermanentFetch (FetchNotFound for a
// missing body) so callers can tell retry-eligible failures apart.
type Source interface {
	FetchTrajectory(ctx context.Context, simulationID, bodyID string, r TimeRange) ([]domain.RawSample, error)
}
