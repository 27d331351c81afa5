// Package runner executes one pipeline stage at a time: its actions in
// declared order, then the stage's output contract.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/otelhelper"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// StageResult reports what a stage produced. When Err is set the stage
// failed and FailedAction names the action that caused it; a nil
// FailedAction with a non-nil Err means the stage's own output contract was
// violated.
type StageResult struct {
	ProducedArtifacts []models.Artifact
	Outputs           map[string]string
	FailedAction      *models.ActionSpec
	Err               error
}

// Runner executes stages against the action registry and artifact store.
type Runner struct {
	registry *registry.Registry
	store    artifact.Store
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewRunner(reg *registry.Registry, store artifact.Store, tracer trace.Tracer, logger *slog.Logger) *Runner {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("runner")
	}

	return &Runner{
		registry: reg,
		store:    store,
		tracer:   tracer,
		logger:   logger.With("module", "runner"),
	}
}

// RunStage executes the stage's actions in order, stopping at the first
// failure. On success every artifact the stage declared as output must
// resolve in the store, otherwise the stage fails with
// protocol.ErrContractViolation. The returned StageResult always reflects
// what had been produced up to the point of failure.
func (r *Runner) RunStage(ctx context.Context, pipeline *models.Pipeline, run *models.Run, stage *models.Stage) *StageResult {
	logger := r.logger.With("pipeline_id", pipeline.ID, "run_id", run.ID, "stage", stage.Name)

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "stage.run",
		attribute.String(otelhelper.PipelineIDKey, pipeline.ID),
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.StageNameKey, stage.Name),
	)
	defer span.End()

	result := &StageResult{Outputs: make(map[string]string)}

	executionCtx, err := r.buildExecutionContext(ctx, pipeline, run, stage)
	if err != nil {
		otelhelper.SetError(span, err)
		result.Err = err

		return result
	}

	for _, spec := range stage.Actions {
		if err := r.runAction(ctx, spec, executionCtx, result, logger); err != nil {
			otelhelper.SetError(span, err,
				attribute.String(otelhelper.ActionTypeKey, string(spec.Type)))

			result.FailedAction = spec
			result.Err = err

			return result
		}
	}

	// Output contract: success is only success if every declared artifact
	// actually exists. This catches actions that silently produced nothing.
	for _, name := range stage.OutputArtifacts {
		if _, err := r.store.Stat(ctx, run.ID, name); err != nil {
			if artifact.IsNotFound(err) {
				err = fmt.Errorf("%w: stage %q declared output %q", protocol.ErrContractViolation, stage.Name, name)
			}

			otelhelper.SetError(span, err)
			result.Err = err

			return result
		}
	}

	logger.InfoContext(ctx, "Stage completed",
		"artifacts", len(result.ProducedArtifacts), "outputs", len(result.Outputs))

	return result
}

func (r *Runner) runAction(
	ctx context.Context,
	spec *models.ActionSpec,
	executionCtx *models.ExecutionContext,
	result *StageResult,
	logger *slog.Logger,
) error {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "action.execute",
		attribute.String(otelhelper.ActionIDKey, spec.ID),
		attribute.String(otelhelper.ActionTypeKey, string(spec.Type)),
	)
	defer span.End()

	action, err := r.registry.CreateAction(string(spec.Type), spec.Configuration)
	if err != nil {
		return fmt.Errorf("failed to create action %q: %w", spec.Name, err)
	}

	logger.InfoContext(ctx, "Executing action", "action", spec.Name, "type", spec.Type)

	actionResult, err := action.Execute(ctx, *executionCtx, logger)
	if err != nil {
		return err
	}

	if actionResult == nil {
		return nil
	}

	for _, art := range actionResult.Artifacts {
		executionCtx.Artifacts[art.Name] = art
		result.ProducedArtifacts = append(result.ProducedArtifacts, art)
	}

	for key, value := range actionResult.Outputs {
		executionCtx.Outputs[key] = value
		result.Outputs[key] = value
	}

	return nil
}

// buildExecutionContext resolves the stage's declared input artifacts from
// the store. The reserved source input is the revision itself and resolves
// to nothing.
func (r *Runner) buildExecutionContext(
	ctx context.Context,
	pipeline *models.Pipeline,
	run *models.Run,
	stage *models.Stage,
) (*models.ExecutionContext, error) {
	artifacts := make(map[string]models.Artifact, len(stage.InputArtifacts))

	for _, name := range stage.InputArtifacts {
		if name == models.SourceArtifactName {
			continue
		}

		art, err := r.store.Stat(ctx, run.ID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input artifact %q: %w", name, err)
		}

		artifacts[name] = art
	}

	outputs := make(map[string]string, len(run.Outputs))
	for key, value := range run.Outputs {
		outputs[key] = value
	}

	return &models.ExecutionContext{
		ID:         run.ID + "-" + stage.Name,
		PipelineID: pipeline.ID,
		RunID:      run.ID,
		Revision:   run.Revision,
		StageName:  stage.Name,
		Variables:  pipeline.Variables,
		Artifacts:  artifacts,
		Outputs:    outputs,
	}, nil
}
