package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/database"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bake_runs (
		id            UUID PRIMARY KEY,
		scene_id      TEXT NOT NULL,
		simulation_id TEXT NOT NULL,
		fps           INTEGER NOT NULL,
		duration      DOUBLE PRECISION NOT NULL,
		status        TEXT NOT NULL,
		succeeded     INTEGER NOT NULL DEFAULT 0,
		failed        INTEGER NOT NULL DEFAULT 0,
		bodies        JSONB NOT NULL DEFAULT '{}'::jsonb,
		error         TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS bake_runs_scene_idx ON bake_runs (scene_id, started_at DESC);
`

// BakeRunRepository handles bake run records in PostgreSQL
type BakeRunRepository struct {
	db *database.PostgresDB
}

// NewBakeRunRepository creates a new bake run repository
func NewBakeRunRepository(db *database.PostgresDB) *BakeRunRepository {
	return &BakeRunRepository{db: db}
}

// EnsureSchema creates the bake_runs table when missing
func (r *BakeRunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create bake_runs schema: %w", err)
	}
	return nil
}

// Create inserts a new run
func (r *BakeRunRepository) Create(ctx context.Context, run *domain.BakeRun) error {
	query := `
		INSERT INTO bake_runs (id, scene_id, simulation_id, fps, duration, status, bodies, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		run.ID,
		run.SceneID,
		run.SimulationID,
		run.FPS,
		run.Duration,
		run.Status,
		run.Bodies,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bake run: %w", err)
	}

	return nil
}

// Finish stores the outcome of a run
func (r *BakeRunRepository) Finish(ctx context.Context, run *domain.BakeRun) error {
	query := `
		UPDATE bake_runs
		SET status = $2, succeeded = $3, failed = $4, bodies = $5, error = $6, finished_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.Succeeded,
		run.Failed,
		run.Bodies,
		run.Error,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to finish bake run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("bake run")
	}

	return nil
}

// GetByID retrieves a run by ID
func (r *BakeRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BakeRun, error) {
	query := `
		SELECT id, scene_id, simulation_id, fps, duration, status, succeeded, failed,
		       bodies, error, started_at, finished_at
		FROM bake_runs
		WHERE id = $1
	`

	var run domain.BakeRun
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.SceneID,
		&run.SimulationID,
		&run.FPS,
		&run.Duration,
		&run.Status,
		&run.Succeeded,
		&run.Failed,
		&run.Bodies,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("bake run")
		}
		return nil, fmt.Errorf("failed to get bake run: %w", err)
	}

	return &run, nil
}

// ListByScene returns the most recent runs for a scene
func (r *BakeRunRepository) ListByScene(ctx context.Context, sceneID string, limit int) ([]*domain.BakeRun, error) {
	query := `
		SELECT id, scene_id, simulation_id, fps, duration, status, succeeded, failed,
		       bodies, error, started_at, finished_at
		FROM bake_runs
		WHERE scene_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, sceneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bake runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BakeRun
	for rows.Next() {
		var run domain.BakeRun
		if err := rows.Scan(
			&run.ID,
			&run.SceneID,
			&run.SimulationID,
			&run.FPS,
			&run.Duration,
			&run.Status,
			&run.Succeeded,
			&run.Failed,
			&run.Bodies,
			&run.Error,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bake run: %w", err)
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
