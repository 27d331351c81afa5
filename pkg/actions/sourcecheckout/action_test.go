package sourcecheckout

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/sourcehost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newFixture(t *testing.T) (*sourcehost.Filesystem, artifact.Store) {
	t.Helper()

	host, err := sourcehost.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	return host, store
}

func TestExecuteStoresSnapshotArtifact(t *testing.T) {
	host, store := newFixture(t)

	files := map[string][]byte{
		"build.py":         []byte("print('build')"),
		"requirements.txt": []byte("boto3"),
	}
	require.NoError(t, host.Commit("main", "rev-1", files))

	action, err := NewAction(map[string]any{}, host, store)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), models.ExecutionContext{
		RunID:     "run-1",
		Revision:  "rev-1",
		StageName: "Source",
	}, testLogger())
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	art := result.Artifacts[0]
	assert.Equal(t, "SourceOutput", art.Name)
	assert.Equal(t, "Source", art.ProducedByStage)
	assert.Equal(t, "rev-1", result.Outputs["revision"])

	tree, err := store.Extract(context.Background(), art.ContentRef)
	require.NoError(t, err)
	assert.Equal(t, files, tree)
}

func TestExecuteFallsBackToBranchHead(t *testing.T) {
	host, store := newFixture(t)
	require.NoError(t, host.Commit("main", "rev-7", map[string][]byte{"a": []byte("x")}))

	action, err := NewAction(map[string]any{"branch": "main"}, host, store)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), models.ExecutionContext{RunID: "run-1"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "rev-7", result.Outputs["revision"])
}

func TestExecuteUnknownRevision(t *testing.T) {
	host, store := newFixture(t)

	action, err := NewAction(map[string]any{}, host, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.ExecutionContext{
		RunID:    "run-1",
		Revision: "missing",
	}, testLogger())
	assert.ErrorIs(t, err, protocol.ErrRevisionNotFound)
}

func TestExecuteNoRevisionAndNoBranch(t *testing.T) {
	host, store := newFixture(t)

	action, err := NewAction(map[string]any{}, host, store)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.ExecutionContext{RunID: "run-1"}, testLogger())
	assert.ErrorIs(t, err, protocol.ErrRevisionNotFound)
}

func TestNewActionRejectsReservedArtifactName(t *testing.T) {
	host, store := newFixture(t)

	_, err := NewAction(map[string]any{"artifact": models.SourceArtifactName}, host, store)
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	host, store := newFixture(t)
	factory := NewActionFactory(host, store)

	assert.Equal(t, "source_checkout", factory.ID())
	assert.NotEmpty(t, factory.Schema())

	action, err := factory.Create(map[string]any{"artifact": "CustomOutput"})
	require.NoError(t, err)
	assert.Equal(t, "CustomOutput", action.(*Action).ArtifactName)
}
