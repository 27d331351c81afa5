// Package buildexec provides the action that runs a build job against a
// stored source artifact and captures its outputs as a new artifact.
package buildexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/template"
)

const DefaultArtifactName = "BuildOutput"

// Action extracts the input artifact into a sandbox, runs the configured
// command list, and packs the declared output files into a new artifact.
// Commands and environment values are rendered against the run context
// before the job starts.
type Action struct {
	Input        string
	ArtifactName string
	Commands     []string
	Env          map[string]string
	BaseDir      string
	Files        string
	Timeout      time.Duration

	sandbox protocol.Sandbox
	store   artifact.Store
}

func NewAction(config map[string]any, sandbox protocol.Sandbox, store artifact.Store) (*Action, error) {
	input, ok := config["input"].(string)
	if !ok || input == "" {
		return nil, fmt.Errorf("missing 'input' in configuration")
	}

	name, _ := config["artifact"].(string)
	if name == "" {
		name = DefaultArtifactName
	}

	if name == models.SourceArtifactName {
		return nil, fmt.Errorf("artifact name %q is reserved", models.SourceArtifactName)
	}

	commands := stringSlice(config["commands"])
	if len(commands) == 0 {
		return nil, fmt.Errorf("missing 'commands' in configuration")
	}

	baseDir, _ := config["base_dir"].(string)
	files, _ := config["files"].(string)

	var timeout time.Duration
	if seconds, ok := config["timeout"].(float64); ok {
		timeout = time.Duration(seconds) * time.Second
	}

	return &Action{
		Input:        input,
		ArtifactName: name,
		Commands:     commands,
		Env:          stringMap(config["env"]),
		BaseDir:      baseDir,
		Files:        files,
		Timeout:      timeout,
		sandbox:      sandbox,
		store:        store,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (*protocol.ActionResult, error) {
	logger = logger.With("module", "build_execute_action")

	input, ok := executionCtx.Artifacts[a.Input]
	if !ok {
		return nil, fmt.Errorf("%w: input artifact %q not resolved for stage", artifact.ErrNotFound, a.Input)
	}

	source, err := a.store.Extract(ctx, input.ContentRef)
	if err != nil {
		return nil, err
	}

	env, err := template.RenderMap(a.Env, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render build environment: %w", err)
	}

	commands, err := template.RenderSlice(a.Commands, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render build commands: %w", err)
	}

	logger.InfoContext(ctx, "Starting build job",
		"input", a.Input, "commands", len(commands), "timeout", a.Timeout)

	result, err := a.sandbox.Run(ctx, protocol.BuildJob{
		Source:   source,
		Commands: commands,
		Env:      env,
		BaseDir:  a.BaseDir,
		Files:    a.Files,
		Timeout:  a.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if result.ExitCode != 0 {
		logger.ErrorContext(ctx, "Build job exited non-zero",
			"exit_code", result.ExitCode, "output", result.Output)

		return nil, fmt.Errorf("%w: exit code %d", protocol.ErrBuildFailed, result.ExitCode)
	}

	blob, err := artifact.Pack(result.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to pack build outputs: %w", err)
	}

	art, err := a.store.Put(ctx, executionCtx.RunID, a.ArtifactName, blob)
	if err != nil {
		return nil, err
	}

	art.ProducedByStage = executionCtx.StageName

	logger.InfoContext(ctx, "Stored build artifact",
		"artifact", art.Name, "content_ref", art.ContentRef, "files", len(result.Files))

	return &protocol.ActionResult{Artifacts: []models.Artifact{art}}, nil
}

func stringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		if typed, ok := value.([]string); ok {
			return typed
		}

		return nil
	}

	result := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}

	return result
}

func stringMap(value any) map[string]string {
	result := make(map[string]string)

	entries, ok := value.(map[string]any)
	if !ok {
		if typed, ok := value.(map[string]string); ok {
			return typed
		}

		return result
	}

	for k, v := range entries {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}

	return result
}
