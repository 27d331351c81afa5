package buildexec

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// fakeSandbox records the job it received and plays back a canned result.
type fakeSandbox struct {
	job    protocol.BuildJob
	result *protocol.BuildResult
	err    error
}

func (f *fakeSandbox) Run(_ context.Context, job protocol.BuildJob) (*protocol.BuildResult, error) {
	f.job = job

	if f.err != nil {
		return nil, f.err
	}

	return f.result, nil
}

func seedSource(t *testing.T, store artifact.Store, runID string) models.Artifact {
	t.Helper()

	blob, err := artifact.Pack(map[string][]byte{
		"build.py": []byte("print('build')"),
	})
	require.NoError(t, err)

	art, err := store.Put(context.Background(), runID, "SourceOutput", blob)
	require.NoError(t, err)

	return art
}

func execCtx(art models.Artifact) models.ExecutionContext {
	return models.ExecutionContext{
		RunID:     art.RunID,
		Revision:  "rev-1",
		StageName: "Build",
		Variables: map[string]any{"bucket": "bkt-1"},
		Artifacts: map[string]models.Artifact{art.Name: art},
	}
}

func TestExecuteProducesBuildArtifact(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedSource(t, store, "run-1")

	sandbox := &fakeSandbox{result: &protocol.BuildResult{
		ExitCode: 0,
		Files:    map[string][]byte{"app.tar": []byte("bundle")},
	}}

	action, err := NewAction(map[string]any{
		"input":    "SourceOutput",
		"commands": []any{"pip install -r requirements.txt", "python build.py"},
		"env":      map[string]any{"BUCKET_NAME": "{{.variables.bucket}}"},
		"base_dir": "dist",
		"files":    "**/*",
		"timeout":  float64(30),
	}, sandbox, store)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), execCtx(art), testLogger())
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "BuildOutput", result.Artifacts[0].Name)
	assert.Equal(t, "Build", result.Artifacts[0].ProducedByStage)

	// The job carries the extracted source, rendered env, and the contract.
	assert.Equal(t, "print('build')", string(sandbox.job.Source["build.py"]))
	assert.Equal(t, "bkt-1", sandbox.job.Env["BUCKET_NAME"])
	assert.Equal(t, "dist", sandbox.job.BaseDir)
	assert.Equal(t, "**/*", sandbox.job.Files)
	assert.Equal(t, 30*time.Second, sandbox.job.Timeout)

	tree, err := store.Extract(context.Background(), result.Artifacts[0].ContentRef)
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(tree["app.tar"]))
}

func TestExecuteNonZeroExitIsBuildFailed(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedSource(t, store, "run-1")
	sandbox := &fakeSandbox{result: &protocol.BuildResult{ExitCode: 2, Output: "boom"}}

	action, err := NewAction(map[string]any{
		"input":    "SourceOutput",
		"commands": []any{"python build.py"},
	}, sandbox, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), execCtx(art), testLogger())
	assert.ErrorIs(t, err, protocol.ErrBuildFailed)
}

func TestExecuteTimeoutPassesThrough(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedSource(t, store, "run-1")
	sandbox := &fakeSandbox{err: protocol.ErrTimeout}

	action, err := NewAction(map[string]any{
		"input":    "SourceOutput",
		"commands": []any{"sleep 600"},
	}, sandbox, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), execCtx(art), testLogger())
	assert.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestExecuteMissingInputArtifact(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	sandbox := &fakeSandbox{result: &protocol.BuildResult{ExitCode: 0}}

	action, err := NewAction(map[string]any{
		"input":    "SourceOutput",
		"commands": []any{"true"},
	}, sandbox, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.ExecutionContext{RunID: "run-1"}, testLogger())
	assert.True(t, errors.Is(err, artifact.ErrNotFound))
}

func TestNewActionConfigValidation(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	sandbox := &fakeSandbox{}

	_, err = NewAction(map[string]any{"commands": []any{"true"}}, sandbox, store)
	assert.Error(t, err, "input is required")

	_, err = NewAction(map[string]any{"input": "SourceOutput"}, sandbox, store)
	assert.Error(t, err, "commands are required")

	_, err = NewAction(map[string]any{
		"input":    "SourceOutput",
		"commands": []any{"true"},
		"artifact": models.SourceArtifactName,
	}, sandbox, store)
	assert.Error(t, err, "reserved artifact name")
}

func TestFactory(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	factory := NewActionFactory(&fakeSandbox{}, store)
	assert.Equal(t, "build_execute", factory.ID())
	assert.NotEmpty(t, factory.Schema())

	action, err := factory.Create(map[string]any{
		"input":    "SourceOutput",
		"commands": []any{"python build.py"},
	})
	require.NoError(t, err)
	assert.Equal(t, "BuildOutput", action.(*Action).ArtifactName)
}
