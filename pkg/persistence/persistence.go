// Package persistence provides the data storage abstraction layer for
// pipelines and runs.
package persistence

import (
	"context"

	"github.com/conveyor-ci/conveyor/pkg/models"
)

type Persistence interface {
	PipelineRepository() PipelineRepository
	RunRepository() RunRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// PipelineRepository stores immutable pipeline definitions.
type PipelineRepository interface {
	Save(ctx context.Context, pipeline *models.Pipeline) error
	GetByID(ctx context.Context, id string) (*models.Pipeline, error)
	List(ctx context.Context) ([]*models.Pipeline, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository stores run state. Save is an upsert: the coordinator writes
// the run after every transition.
type RunRepository interface {
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	ListByPipeline(ctx context.Context, pipelineID string) ([]*models.Run, error)

	// FindActiveByRevision returns the non-terminal run for the given
	// pipeline and revision, or ErrRunNotFound when none exists. Backs the
	// coordinator's submit deduplication.
	FindActiveByRevision(ctx context.Context, pipelineID, revision string) (*models.Run, error)
}
