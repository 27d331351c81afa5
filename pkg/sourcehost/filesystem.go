// Package sourcehost provides source control collaborator implementations.
package sourcehost

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// Filesystem is a directory-backed source host: revision snapshots live
// under revisions/<rev>/ and branch heads are small ref files under refs/.
// It plays the role a hosted VCS would in production, the same way a
// file-backed repository stands in for a database.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	for _, dir := range []string{"revisions", "refs"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to initialize source host: %w", err)
		}
	}

	return &Filesystem{root: root}, nil
}

func (h *Filesystem) Head(_ context.Context, branch string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.root, "refs", branch))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: branch %q has no head", protocol.ErrRevisionNotFound, branch)
	}

	if err != nil {
		return "", fmt.Errorf("failed to read ref for branch %q: %w", branch, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (h *Filesystem) Checkout(_ context.Context, revision string) (map[string][]byte, error) {
	root := filepath.Join(h.root, "revisions", revision)

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", protocol.ErrRevisionNotFound, revision)
	}

	if os.IsPermission(err) {
		return nil, fmt.Errorf("%w: %s", protocol.ErrAccessDenied, revision)
	}

	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a snapshot", protocol.ErrRevisionNotFound, revision)
	}

	files := make(map[string][]byte)

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%w: %s", protocol.ErrAccessDenied, revision)
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%w: %s", protocol.ErrAccessDenied, revision)
			}

			return err
		}

		files[filepath.ToSlash(rel)] = data

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Commit records a revision snapshot and moves the branch head to it.
// Used by tooling and tests to seed the host.
func (h *Filesystem) Commit(branch, revision string, files map[string][]byte) error {
	root := filepath.Join(h.root, "revisions", revision)

	for name, data := range files {
		target := filepath.Join(root, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(h.root, "refs", branch), []byte(revision+"\n"), 0o644)
}
