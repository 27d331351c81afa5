package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/models"
)

// FilesystemStore implements Store on the local filesystem. Blobs live under
// blobs/<ref> and the (run, name) bindings are pointer files under
// runs/<run>/<name>. Both are written through a temp file, fsynced, and
// renamed so a Put that returned is durable and never partially visible.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at the given directory.
// Accepts a plain path or a file:// URL.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"blobs", "runs"} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755); err != nil {
			return nil, &StoreError{Op: "Init", Err: err}
		}
	}

	return &FilesystemStore{root: cleanRoot}, nil
}

func (s *FilesystemStore) Put(_ context.Context, runID, name string, data []byte) (models.Artifact, error) {
	ref := ContentRef(data)

	blobPath := filepath.Join(s.root, "blobs", ref)
	if _, err := os.Stat(blobPath); os.IsNotExist(err) {
		if err := writeDurable(blobPath, data); err != nil {
			return models.Artifact{}, &StoreError{Op: "Put", RunID: runID, Name: name, Err: err}
		}
	}

	pointerPath := s.pointerPath(runID, name)
	if err := os.MkdirAll(filepath.Dir(pointerPath), 0o755); err != nil {
		return models.Artifact{}, &StoreError{Op: "Put", RunID: runID, Name: name, Err: err}
	}

	if err := writeDurable(pointerPath, []byte(ref)); err != nil {
		return models.Artifact{}, &StoreError{Op: "Put", RunID: runID, Name: name, Err: err}
	}

	return models.Artifact{
		RunID:      runID,
		Name:       name,
		ContentRef: ref,
		Size:       int64(len(data)),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *FilesystemStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	art, err := s.Stat(ctx, runID, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, "blobs", art.ContentRef))
	if err != nil {
		return nil, &StoreError{Op: "Get", RunID: runID, Name: name, Err: err}
	}

	return data, nil
}

func (s *FilesystemStore) Stat(_ context.Context, runID, name string) (models.Artifact, error) {
	refBytes, err := os.ReadFile(s.pointerPath(runID, name))
	if os.IsNotExist(err) {
		return models.Artifact{}, &StoreError{Op: "Stat", RunID: runID, Name: name, Err: ErrNotFound}
	}

	if err != nil {
		return models.Artifact{}, &StoreError{Op: "Stat", RunID: runID, Name: name, Err: err}
	}

	ref := strings.TrimSpace(string(refBytes))

	info, err := os.Stat(filepath.Join(s.root, "blobs", ref))
	if err != nil {
		return models.Artifact{}, &StoreError{Op: "Stat", RunID: runID, Name: name, Err: err}
	}

	return models.Artifact{
		RunID:      runID,
		Name:       name,
		ContentRef: ref,
		Size:       info.Size(),
		CreatedAt:  info.ModTime().UTC(),
	}, nil
}

func (s *FilesystemStore) Extract(_ context.Context, contentRef string) (map[string][]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, "blobs", contentRef))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return Unpack(data)
}

func (s *FilesystemStore) Close(_ context.Context) error {
	return nil
}

func (s *FilesystemStore) pointerPath(runID, name string) string {
	return filepath.Join(s.root, "runs", runID, name)
}

func writeDurable(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return err
	}

	return os.Rename(tmpName, path)
}
