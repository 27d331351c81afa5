package publish

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	location string
	files    map[string][]byte
	err      error
}

func (f *fakeTarget) Publish(_ context.Context, location string, files map[string][]byte) error {
	f.location = location
	f.files = files

	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func seedArtifact(t *testing.T, store artifact.Store) models.Artifact {
	t.Helper()

	blob, err := artifact.Pack(map[string][]byte{"app.tar": []byte("bundle")})
	require.NoError(t, err)

	art, err := store.Put(context.Background(), "run-1", "BuildOutput", blob)
	require.NoError(t, err)

	return art
}

func TestExecutePublishesFiles(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store)
	target := &fakeTarget{}

	action, err := NewAction(map[string]any{
		"input":    "BuildOutput",
		"location": "releases/{{.run_id}}",
	}, target, store)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), models.ExecutionContext{
		RunID:     "run-1",
		Artifacts: map[string]models.Artifact{art.Name: art},
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "releases/run-1", target.location)
	assert.Equal(t, "bundle", string(target.files["app.tar"]))
	assert.Equal(t, "releases/run-1", result.Outputs["published_to"])
	assert.Empty(t, result.Artifacts)
}

func TestExecuteWriteDeniedPassesThrough(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store)
	target := &fakeTarget{err: protocol.ErrWriteDenied}

	action, err := NewAction(map[string]any{
		"input":    "BuildOutput",
		"location": "releases/latest",
	}, target, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.ExecutionContext{
		RunID:     "run-1",
		Artifacts: map[string]models.Artifact{art.Name: art},
	}, testLogger())
	assert.ErrorIs(t, err, protocol.ErrWriteDenied)
}

func TestExecuteMissingInput(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	action, err := NewAction(map[string]any{
		"input":    "BuildOutput",
		"location": "releases/latest",
	}, &fakeTarget{}, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.ExecutionContext{RunID: "run-1"}, testLogger())
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestNewActionConfigValidation(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewAction(map[string]any{"location": "x"}, &fakeTarget{}, store)
	assert.Error(t, err)

	_, err = NewAction(map[string]any{"input": "BuildOutput"}, &fakeTarget{}, store)
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	factory := NewActionFactory(&fakeTarget{}, store)
	assert.Equal(t, "artifact_publish", factory.ID())
	assert.NotEmpty(t, factory.Schema())
}
