// Package artifact provides content-addressed storage for the file bundles
// produced and consumed between pipeline stages.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/zeebo/blake3"
)

var (
	// ErrNotFound indicates no artifact exists under the given (run, name).
	ErrNotFound = errors.New("artifact not found")

	// ErrCorruptArtifact indicates an archive-shaped artifact could not be
	// parsed.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)

// Store is the durable mapping from (run, name) to content, plus raw blob
// storage addressed by content reference. Writes are durable before Put
// returns, and identical bytes always yield the same reference.
type Store interface {
	Put(ctx context.Context, runID, name string, data []byte) (models.Artifact, error)
	Get(ctx context.Context, runID, name string) ([]byte, error)
	Stat(ctx context.Context, runID, name string) (models.Artifact, error)

	// Extract unpacks an archive-shaped blob into its file tree.
	Extract(ctx context.Context, contentRef string) (map[string][]byte, error)

	Close(ctx context.Context) error
}

// ContentRef derives the content-addressed reference for a blob.
func ContentRef(data []byte) string {
	sum := blake3.Sum256(data)

	return fmt.Sprintf("%x", sum)
}

// StoreError wraps store failures with the operation and key for context.
type StoreError struct {
	Op    string
	RunID string
	Name  string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for artifact %s/%s: %v", e.Op, e.RunID, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound checks whether an error indicates a missing artifact.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
