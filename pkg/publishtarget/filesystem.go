// Package publishtarget provides publish destination collaborator
// implementations for artifact publish actions.
package publishtarget

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// Filesystem publishes artifact files into a directory tree under a root.
// A refused write reports ErrWriteDenied, everything else is an internal
// failure.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to initialize publish target: %w", err)
	}

	return &Filesystem{root: root}, nil
}

func (t *Filesystem) Publish(_ context.Context, location string, files map[string][]byte) error {
	base := filepath.Join(t.root, filepath.FromSlash(location))

	for name, data := range files {
		target := filepath.Join(base, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%w: %s", protocol.ErrWriteDenied, location)
			}

			return fmt.Errorf("failed to publish %s: %w", name, err)
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%w: %s", protocol.ErrWriteDenied, location)
			}

			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}

	return nil
}
