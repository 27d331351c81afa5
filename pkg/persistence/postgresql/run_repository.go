package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
)

// RunRepository handles run storage in PostgreSQL.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger.With("module", "postgresql_run_repository"),
	}
}

func (rr *RunRepository) Save(ctx context.Context, run *models.Run) error {
	outputs, err := json.Marshal(run.Outputs)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to marshal outputs: %w", err))
	}

	var failure []byte

	if run.Failure != nil {
		failure, err = json.Marshal(run.Failure)
		if err != nil {
			return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to marshal failure: %w", err))
		}
	}

	_, err = rr.db.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline_id, revision, status, current_stage_index,
		                  outputs, failure, created_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    current_stage_index = EXCLUDED.current_stage_index,
		    outputs = EXCLUDED.outputs,
		    failure = EXCLUDED.failure,
		    started_at = EXCLUDED.started_at,
		    ended_at = EXCLUDED.ended_at
	`, run.ID, run.PipelineID, run.Revision, run.Status, run.CurrentStageIndex,
		outputs, failure, run.CreatedAt, run.StartedAt, run.EndedAt)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}

func (rr *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	row := rr.db.QueryRowContext(ctx, `
		SELECT id, pipeline_id, revision, status, current_stage_index,
		       outputs, failure, created_at, started_at, ended_at
		FROM runs WHERE id = $1
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return run, nil
}

func (rr *RunRepository) ListByPipeline(ctx context.Context, pipelineID string) ([]*models.Run, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT id, pipeline_id, revision, status, current_stage_index,
		       outputs, failure, created_at, started_at, ended_at
		FROM runs WHERE pipeline_id = $1
		ORDER BY created_at ASC
	`, pipelineID)
	if err != nil {
		return nil, persistence.NewRunError("ListByPipeline", "", err)
	}
	defer rows.Close()

	var runs []*models.Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, persistence.NewRunError("ListByPipeline", "", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewRunError("ListByPipeline", "", err)
	}

	return runs, nil
}

func (rr *RunRepository) FindActiveByRevision(ctx context.Context, pipelineID, revision string) (*models.Run, error) {
	row := rr.db.QueryRowContext(ctx, `
		SELECT id, pipeline_id, revision, status, current_stage_index,
		       outputs, failure, created_at, started_at, ended_at
		FROM runs
		WHERE pipeline_id = $1 AND revision = $2
		  AND status IN ('pending', 'running')
		ORDER BY created_at ASC
		LIMIT 1
	`, pipelineID, revision)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRunError("FindActiveByRevision", "", persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewRunError("FindActiveByRevision", "", err)
	}

	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run     models.Run
		outputs []byte
		failure []byte
	)

	err := row.Scan(&run.ID, &run.PipelineID, &run.Revision, &run.Status,
		&run.CurrentStageIndex, &outputs, &failure,
		&run.CreatedAt, &run.StartedAt, &run.EndedAt)
	if err != nil {
		return nil, err
	}

	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &run.Outputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
		}
	}

	if len(failure) > 0 {
		if err := json.Unmarshal(failure, &run.Failure); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure: %w", err)
		}
	}

	return &run, nil
}
