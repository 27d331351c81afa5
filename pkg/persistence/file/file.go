// Package file provides file-based persistence for pipelines and runs,
// suitable for development and single-node deployments.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/conveyor-ci/conveyor/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the local
// file system.
type Persistence struct {
	root         string
	pipelineRepo *PipelineRepository
	runRepo      *RunRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. Accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		pipelineRepo: NewPipelineRepository(cleanRoot),
		runRepo:      NewRunRepository(cleanRoot),
	}
}

func (fp *Persistence) PipelineRepository() persistence.PipelineRepository {
	return fp.pipelineRepo
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
