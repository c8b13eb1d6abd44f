package physics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/keyframestudio/stage/internal/domain"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// Recording is a captured simulation: simulation id -> body id -> samples.
type Recording map[string]map[string][]domain.RawSample

// RecordedSource replays trajectories captured earlier, for offline bakes
// and tests. It ignores the requested range; resampling clamps whatever
// coverage the recording has.
type RecordedSource struct {
	rec Recording
}

// NewRecordedSource wraps an in-memory recording
func NewRecordedSource(rec Recording) *RecordedSource {
	return &RecordedSource{rec: rec}
}

// LoadRecording reads a recording from a JSON file shaped like
// {"<simulation>": {"<body>": [{"time":0,"position":[0,0,0],...}]}}.
func LoadRecording(path string) (*RecordedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse recording %s: %w", path, err)
	}
	return NewRecordedSource(rec), nil
}

// FetchTrajectory implements Source
func (s *RecordedSource) FetchTrajectory(ctx context.Context, simulationID, bodyID string, _ TimeRange) ([]domain.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Canceled(err)
	}
	bodies, ok := s.rec[simulationID]
	if !ok {
		return nil, apperrors.FetchNotFound(simulationID, bodyID)
	}
	samples, ok := bodies[bodyID]
	if !ok {
		return nil, apperrors.FetchNotFound(simulationID, bodyID)
	}
	out := make([]domain.RawSample, len(samples))
	copy(out, samples)
	for i := range out {
		out[i].Rotation = out[i].Rotation.Normalize()
	}
	return out, nil
}
