package file

import (
	"context"
	"testing"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(id string) *models.Pipeline {
	return &models.Pipeline{
		ID:   id,
		Name: "python-app",
		Stages: []*models.Stage{
			{
				Name: "Source",
				Actions: []*models.ActionSpec{
					{ID: "a1", Type: models.ActionTypeSourceCheckout, Name: "checkout"},
				},
				OutputArtifacts: []string{"SourceOutput"},
			},
		},
	}
}

func TestPipelineRepositoryRoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.PipelineRepository()

	pipeline := testPipeline("pipe-1")
	require.NoError(t, repo.Save(context.Background(), pipeline))
	assert.False(t, pipeline.CreatedAt.IsZero())

	got, err := repo.GetByID(context.Background(), "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Name, got.Name)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, "Source", got.Stages[0].Name)
}

func TestPipelineRepositoryNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.PipelineRepository().GetByID(context.Background(), "missing")
	assert.True(t, persistence.IsPipelineNotFound(err))

	err = p.PipelineRepository().Delete(context.Background(), "missing")
	assert.True(t, persistence.IsPipelineNotFound(err))
}

func TestPipelineRepositoryListSorted(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.PipelineRepository()

	require.NoError(t, repo.Save(context.Background(), testPipeline("pipe-a")))
	require.NoError(t, repo.Save(context.Background(), testPipeline("pipe-b")))

	pipelines, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, pipelines, 2)
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	run := models.NewRun("pipe-1", "rev-1")
	require.NoError(t, repo.Save(context.Background(), run))

	got, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, got.Status)
	assert.Equal(t, "rev-1", got.Revision)
}

func TestRunRepositorySaveIsUpsert(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	run := models.NewRun("pipe-1", "rev-1")
	require.NoError(t, repo.Save(context.Background(), run))

	require.NoError(t, run.Start())
	require.NoError(t, repo.Save(context.Background(), run))

	got, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
}

func TestRunRepositoryFindActiveByRevision(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	active := models.NewRun("pipe-1", "rev-1")
	require.NoError(t, repo.Save(context.Background(), active))

	finished := models.NewRun("pipe-1", "rev-2")
	require.NoError(t, finished.Start())
	require.NoError(t, finished.Succeed())
	require.NoError(t, repo.Save(context.Background(), finished))

	got, err := repo.FindActiveByRevision(context.Background(), "pipe-1", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	// Terminal runs do not count as active.
	_, err = repo.FindActiveByRevision(context.Background(), "pipe-1", "rev-2")
	assert.True(t, persistence.IsRunNotFound(err))

	// Other pipelines do not match.
	_, err = repo.FindActiveByRevision(context.Background(), "pipe-2", "rev-1")
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestRunRepositoryListByPipeline(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.RunRepository()

	require.NoError(t, repo.Save(context.Background(), models.NewRun("pipe-1", "rev-1")))
	require.NoError(t, repo.Save(context.Background(), models.NewRun("pipe-1", "rev-2")))
	require.NoError(t, repo.Save(context.Background(), models.NewRun("pipe-2", "rev-1")))

	runs, err := repo.ListByPipeline(context.Background(), "pipe-1")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestHealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())
	assert.NoError(t, p.HealthCheck(context.Background()))

	missing := NewPersistence("/nonexistent/conveyor-data")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
