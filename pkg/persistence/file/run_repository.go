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

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
)

// RunRepository stores run state as one JSON document per run under runs/.
type RunRepository struct {
	root string
}

func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (rr *RunRepository) Save(_ context.Context, run *models.Run) error {
	dir := path.Join(rr.root, "runs")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	if err := os.WriteFile(path.Join(dir, run.ID+".json"), data, 0o600); err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}

func (rr *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	filePath := filepath.Clean(path.Join(rr.root, "runs", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	var run models.Run
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("failed to unmarshal run: %w", err))
	}

	return &run, nil
}

func (rr *RunRepository) ListByPipeline(ctx context.Context, pipelineID string) ([]*models.Run, error) {
	runs, err := rr.all(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Run, 0, len(runs))

	for _, run := range runs {
		if run.PipelineID == pipelineID {
			filtered = append(filtered, run)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	return filtered, nil
}

func (rr *RunRepository) FindActiveByRevision(ctx context.Context, pipelineID, revision string) (*models.Run, error) {
	runs, err := rr.all(ctx)
	if err != nil {
		return nil, err
	}

	for _, run := range runs {
		if run.PipelineID == pipelineID && run.Revision == revision && !run.Terminal() {
			return run, nil
		}
	}

	return nil, persistence.NewRunError("FindActiveByRevision", "", persistence.ErrRunNotFound)
}

func (rr *RunRepository) all(ctx context.Context) ([]*models.Run, error) {
	dir := os.DirFS(path.Join(rr.root, "runs"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, persistence.NewRunError("List", "", err)
	}

	runs := make([]*models.Run, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-len(".json")]

		run, err := rr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, nil
}
