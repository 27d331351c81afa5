package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
)

// PipelineRepository stores pipeline definitions as one JSON document per
// pipeline under pipelines/.
type PipelineRepository struct {
	root string
}

func NewPipelineRepository(root string) *PipelineRepository {
	return &PipelineRepository{root: root}
}

func (pr *PipelineRepository) Save(_ context.Context, pipeline *models.Pipeline) error {
	dir := path.Join(pr.root, "pipelines")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(pipeline, "", "  ")
	if err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	if err := os.WriteFile(path.Join(dir, pipeline.ID+".json"), data, 0o600); err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	return nil
}

func (pr *PipelineRepository) GetByID(_ context.Context, id string) (*models.Pipeline, error) {
	filePath := filepath.Clean(path.Join(pr.root, "pipelines", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewPipelineError("GetByID", id, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewPipelineError("GetByID", id, err)
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal(body, &pipeline); err != nil {
		return nil, persistence.NewPipelineError("GetByID", id, fmt.Errorf("failed to unmarshal pipeline: %w", err))
	}

	return &pipeline, nil
}

func (pr *PipelineRepository) List(ctx context.Context) ([]*models.Pipeline, error) {
	dir := os.DirFS(path.Join(pr.root, "pipelines"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, persistence.NewPipelineError("List", "", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-len(".json")]

		pipeline, err := pr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, pipeline)
	}

	sort.Slice(pipelines, func(i, j int) bool {
		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})

	return pipelines, nil
}

func (pr *PipelineRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(path.Join(pr.root, "pipelines", id+".json"))
	if os.IsNotExist(err) {
		return persistence.NewPipelineError("Delete", id, persistence.ErrPipelineNotFound)
	}

	if err != nil {
		return persistence.NewPipelineError("Delete", id, err)
	}

	return nil
}
