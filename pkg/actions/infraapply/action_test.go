package infraapply

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

// fakeProvisioner plays back one error per call until the scripted errors
// run out, then succeeds with canned outputs.
type fakeProvisioner struct {
	errs    []error
	outputs map[string]string
	calls   int
	stack   string
}

func (f *fakeProvisioner) Apply(_ context.Context, stackName string, _ []byte) (map[string]string, error) {
	f.calls++
	f.stack = stackName

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]

		return nil, err
	}

	return f.outputs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func seedArtifact(t *testing.T, store artifact.Store, files map[string][]byte) models.Artifact {
	t.Helper()

	blob, err := artifact.Pack(files)
	require.NoError(t, err)

	art, err := store.Put(context.Background(), "run-1", "BuildOutput", blob)
	require.NoError(t, err)

	return art
}

func newAction(t *testing.T, provisioner protocol.Provisioner, store artifact.Store) *Action {
	t.Helper()

	action, err := NewAction(map[string]any{
		"input":      "BuildOutput",
		"stack_name": "PythonAppStack",
	}, provisioner, store)
	require.NoError(t, err)

	action.backoff = func(int) {}

	return action
}

func execCtx(art models.Artifact) models.ExecutionContext {
	return models.ExecutionContext{
		RunID:     "run-1",
		Artifacts: map[string]models.Artifact{art.Name: art},
	}
}

func TestExecuteSurfacesStackOutputs(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store, map[string][]byte{
		"template.yaml": []byte("resources: {}"),
	})

	provisioner := &fakeProvisioner{outputs: map[string]string{"InstancePublicIp": "10.0.0.10"}}
	action := newAction(t, provisioner, store)

	result, err := action.Execute(context.Background(), execCtx(art), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.10", result.Outputs["InstancePublicIp"])
	assert.Equal(t, "PythonAppStack", provisioner.stack)
	assert.Equal(t, 1, provisioner.calls)
}

func TestExecuteRetriesApplyConflict(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store, map[string][]byte{
		"template.yaml": []byte("resources: {}"),
	})

	provisioner := &fakeProvisioner{
		errs:    []error{protocol.ErrApplyConflict, protocol.ErrApplyConflict},
		outputs: map[string]string{"InstancePublicIp": "10.0.0.10"},
	}
	action := newAction(t, provisioner, store)

	result, err := action.Execute(context.Background(), execCtx(art), testLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, provisioner.calls)
	assert.Equal(t, "10.0.0.10", result.Outputs["InstancePublicIp"])
}

func TestExecuteConflictBudgetExhausted(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store, map[string][]byte{
		"template.yaml": []byte("resources: {}"),
	})

	provisioner := &fakeProvisioner{
		errs: []error{protocol.ErrApplyConflict, protocol.ErrApplyConflict, protocol.ErrApplyConflict},
	}
	action := newAction(t, provisioner, store)

	_, err = action.Execute(context.Background(), execCtx(art), testLogger())
	assert.ErrorIs(t, err, protocol.ErrPartialApplyFailure)
	assert.Equal(t, 3, provisioner.calls)
}

func TestExecuteTemplateInvalidIsNotRetried(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store, map[string][]byte{
		"template.yaml": []byte("{{not yaml"),
	})

	provisioner := &fakeProvisioner{errs: []error{protocol.ErrTemplateInvalid}}
	action := newAction(t, provisioner, store)

	_, err = action.Execute(context.Background(), execCtx(art), testLogger())
	assert.ErrorIs(t, err, protocol.ErrTemplateInvalid)
	assert.Equal(t, 1, provisioner.calls)
}

func TestExecuteMissingTemplateFile(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	art := seedArtifact(t, store, map[string][]byte{
		"other.yaml": []byte("resources: {}"),
	})

	provisioner := &fakeProvisioner{}
	action := newAction(t, provisioner, store)

	_, err = action.Execute(context.Background(), execCtx(art), testLogger())
	assert.ErrorIs(t, err, protocol.ErrTemplateInvalid)
	assert.Equal(t, 0, provisioner.calls)
}

func TestNewActionConfigValidation(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewAction(map[string]any{"stack_name": "s"}, &fakeProvisioner{}, store)
	assert.Error(t, err)

	_, err = NewAction(map[string]any{"input": "BuildOutput"}, &fakeProvisioner{}, store)
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	store, err := artifact.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	factory := NewActionFactory(&fakeProvisioner{}, store)
	assert.Equal(t, "infra_apply", factory.ID())
	assert.NotEmpty(t, factory.Schema())
}
