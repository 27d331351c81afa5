package protocol

import (
	"context"
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/models"
)

// ActionResult is what an action hands back to the stage runner: the
// artifacts it stored and any named outputs to surface on the run.
type ActionResult struct {
	Artifacts []models.Artifact
	Outputs   map[string]string
}

// Action is one unit of work inside a stage. Implementations wrap one
// external collaborator each and translate its failures into the sentinel
// taxonomy of this package.
type Action interface {
	Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (*ActionResult, error)
}

// ActionFactory creates action instances from declarative configuration.
// Factories are registered by tag; an unknown tag is rejected when the
// pipeline definition is validated, never at run time.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string

	// Schema returns the JSON schema for this action's configuration,
	// applied at pipeline-creation time.
	Schema() map[string]any
}
