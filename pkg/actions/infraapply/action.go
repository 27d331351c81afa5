// Package infraapply provides the action that applies a provisioning
// template from a stored artifact to a named stack.
package infraapply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/template"
)

const (
	DefaultTemplatePath = "template.yaml"

	applyAttempts = 3
	applyBackoff  = 2 * time.Second
)

// Action reads the provisioning template out of the input artifact and
// applies it to the stack. Apply conflicts get a small bounded retry with
// growing backoff; a conflict that survives the budget is reported as a
// partial apply failure so the run fails loudly. Stack outputs are merged
// into the run's outputs.
type Action struct {
	Input        string
	TemplatePath string
	StackName    string

	provisioner protocol.Provisioner
	store       artifact.Store

	// backoff is replaced in tests to avoid real sleeps.
	backoff func(attempt int)
}

func NewAction(config map[string]any, provisioner protocol.Provisioner, store artifact.Store) (*Action, error) {
	input, ok := config["input"].(string)
	if !ok || input == "" {
		return nil, fmt.Errorf("missing 'input' in configuration")
	}

	stackName, ok := config["stack_name"].(string)
	if !ok || stackName == "" {
		return nil, fmt.Errorf("missing 'stack_name' in configuration")
	}

	templatePath, _ := config["template_path"].(string)
	if templatePath == "" {
		templatePath = DefaultTemplatePath
	}

	return &Action{
		Input:        input,
		TemplatePath: templatePath,
		StackName:    stackName,
		provisioner:  provisioner,
		store:        store,
		backoff: func(attempt int) {
			time.Sleep(applyBackoff * time.Duration(1<<(attempt-1)))
		},
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (*protocol.ActionResult, error) {
	logger = logger.With("module", "infra_apply_action")

	input, ok := executionCtx.Artifacts[a.Input]
	if !ok {
		return nil, fmt.Errorf("%w: input artifact %q not resolved for stage", artifact.ErrNotFound, a.Input)
	}

	files, err := a.store.Extract(ctx, input.ContentRef)
	if err != nil {
		return nil, err
	}

	templateData, ok := files[a.TemplatePath]
	if !ok {
		return nil, fmt.Errorf("%w: artifact %q has no %s", protocol.ErrTemplateInvalid, a.Input, a.TemplatePath)
	}

	stackName, err := template.Render(a.StackName, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render stack name: %w", err)
	}

	outputs, err := a.apply(ctx, stackName, templateData, logger)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Stack apply completed", "stack", stackName, "outputs", len(outputs))

	return &protocol.ActionResult{Outputs: outputs}, nil
}

func (a *Action) apply(ctx context.Context, stackName string, templateData []byte, logger *slog.Logger) (map[string]string, error) {
	var lastErr error

	for attempt := 1; attempt <= applyAttempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying stack apply after conflict",
				"stack", stackName, "attempt", attempt, "max_attempts", applyAttempts)
			a.backoff(attempt - 1)
		}

		outputs, err := a.provisioner.Apply(ctx, stackName, templateData)
		if err == nil {
			return outputs, nil
		}

		if !errors.Is(err, protocol.ErrApplyConflict) {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("%w: stack %q still conflicted after %d attempts: %v",
		protocol.ErrPartialApplyFailure, stackName, applyAttempts, lastErr)
}
