package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
)

// PipelineRepository handles pipeline storage in PostgreSQL.
type PipelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPipelineRepository(db *sql.DB, logger *slog.Logger) *PipelineRepository {
	return &PipelineRepository{
		db:     db,
		logger: logger.With("module", "postgresql_pipeline_repository"),
	}
}

func (pr *PipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) error {
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = time.Now().UTC()
	}

	definition, err := json.Marshal(pipeline)
	if err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, fmt.Errorf("failed to marshal pipeline: %w", err))
	}

	_, err = pr.db.ExecContext(ctx, `
		INSERT INTO pipelines (id, name, description, definition, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    definition = EXCLUDED.definition
	`, pipeline.ID, pipeline.Name, pipeline.Description, definition, pipeline.CreatedAt)
	if err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	return nil
}

func (pr *PipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	var definition []byte

	err := pr.db.QueryRowContext(ctx,
		"SELECT definition FROM pipelines WHERE id = $1", id,
	).Scan(&definition)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewPipelineError("GetByID", id, persistence.ErrPipelineNotFound)
	}

	if err != nil {
		return nil, persistence.NewPipelineError("GetByID", id, err)
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal(definition, &pipeline); err != nil {
		return nil, persistence.NewPipelineError("GetByID", id, fmt.Errorf("failed to unmarshal pipeline: %w", err))
	}

	return &pipeline, nil
}

func (pr *PipelineRepository) List(ctx context.Context) ([]*models.Pipeline, error) {
	rows, err := pr.db.QueryContext(ctx,
		"SELECT definition FROM pipelines ORDER BY created_at ASC")
	if err != nil {
		return nil, persistence.NewPipelineError("List", "", err)
	}
	defer rows.Close()

	var pipelines []*models.Pipeline

	for rows.Next() {
		var definition []byte

		if err := rows.Scan(&definition); err != nil {
			return nil, persistence.NewPipelineError("List", "", err)
		}

		var pipeline models.Pipeline
		if err := json.Unmarshal(definition, &pipeline); err != nil {
			return nil, persistence.NewPipelineError("List", "", fmt.Errorf("failed to unmarshal pipeline: %w", err))
		}

		pipelines = append(pipelines, &pipeline)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewPipelineError("List", "", err)
	}

	return pipelines, nil
}

func (pr *PipelineRepository) Delete(ctx context.Context, id string) error {
	result, err := pr.db.ExecContext(ctx, "DELETE FROM pipelines WHERE id = $1", id)
	if err != nil {
		return persistence.NewPipelineError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewPipelineError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewPipelineError("Delete", id, persistence.ErrPipelineNotFound)
	}

	return nil
}
