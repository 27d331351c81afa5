// Package publish provides the action that copies an artifact's files to an
// external publish target.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/template"
)

// Action unpacks the input artifact and publishes its files to the
// configured location. It produces no artifact; publishing is a side effect
// recorded only in the run's outputs.
type Action struct {
	Input    string
	Location string

	target protocol.PublishTarget
	store  artifact.Store
}

func NewAction(config map[string]any, target protocol.PublishTarget, store artifact.Store) (*Action, error) {
	input, ok := config["input"].(string)
	if !ok || input == "" {
		return nil, fmt.Errorf("missing 'input' in configuration")
	}

	location, ok := config["location"].(string)
	if !ok || location == "" {
		return nil, fmt.Errorf("missing 'location' in configuration")
	}

	return &Action{
		Input:    input,
		Location: location,
		target:   target,
		store:    store,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (*protocol.ActionResult, error) {
	logger = logger.With("module", "artifact_publish_action")

	input, ok := executionCtx.Artifacts[a.Input]
	if !ok {
		return nil, fmt.Errorf("%w: input artifact %q not resolved for stage", artifact.ErrNotFound, a.Input)
	}

	files, err := a.store.Extract(ctx, input.ContentRef)
	if err != nil {
		return nil, err
	}

	location, err := template.Render(a.Location, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render publish location: %w", err)
	}

	logger.InfoContext(ctx, "Publishing artifact",
		"artifact", a.Input, "location", location, "files", len(files))

	if err := a.target.Publish(ctx, location, files); err != nil {
		return nil, err
	}

	return &protocol.ActionResult{
		Outputs: map[string]string{"published_to": location},
	}, nil
}
