package publishtarget

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemPublishWritesTree(t *testing.T) {
	root := t.TempDir()

	target, err := NewFilesystem(root)
	require.NoError(t, err)

	err = target.Publish(context.Background(), "releases/run-1", map[string][]byte{
		"app.tar":       []byte("bundle"),
		"docs/index.md": []byte("# app"),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "releases", "run-1", "app.tar"))
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(data))

	data, err = os.ReadFile(filepath.Join(root, "releases", "run-1", "docs", "index.md"))
	require.NoError(t, err)
	assert.Equal(t, "# app", string(data))
}

func TestFilesystemPublishWriteDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}

	root := t.TempDir()

	target, err := NewFilesystem(root)
	require.NoError(t, err)

	readonly := filepath.Join(root, "frozen")
	require.NoError(t, os.MkdirAll(readonly, 0o555))

	err = target.Publish(context.Background(), "frozen", map[string][]byte{
		"app.tar": []byte("bundle"),
	})
	assert.ErrorIs(t, err, protocol.ErrWriteDenied)
}
