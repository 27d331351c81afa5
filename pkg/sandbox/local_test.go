package sandbox

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox() *Local {
	return NewLocal(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestLocalRunCollectsOutputs(t *testing.T) {
	sb := newTestSandbox()

	result, err := sb.Run(context.Background(), protocol.BuildJob{
		Source: map[string][]byte{
			"build.sh": []byte("unused"),
		},
		Commands: []string{
			"mkdir -p dist/sub",
			"echo artifact > dist/out.txt",
			"echo nested > dist/sub/inner.txt",
			"echo ignored > top-level.txt",
		},
		BaseDir: "dist",
		Files:   "**/*",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "artifact\n", string(result.Files["out.txt"]))
	assert.Equal(t, "nested\n", string(result.Files["sub/inner.txt"]))
	assert.NotContains(t, result.Files, "top-level.txt")
}

func TestLocalRunReportsNonZeroExit(t *testing.T) {
	sb := newTestSandbox()

	result, err := sb.Run(context.Background(), protocol.BuildJob{
		Commands: []string{"exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestLocalRunStopsAtFirstFailingCommand(t *testing.T) {
	sb := newTestSandbox()

	result, err := sb.Run(context.Background(), protocol.BuildJob{
		Commands: []string{
			"echo before",
			"false",
			"mkdir -p dist && echo after > dist/after.txt",
		},
		BaseDir: "dist",
	})
	require.NoError(t, err)

	assert.NotEqual(t, 0, result.ExitCode)
	assert.NotContains(t, result.Output, "after")
}

func TestLocalRunEnvIsVisible(t *testing.T) {
	sb := newTestSandbox()

	result, err := sb.Run(context.Background(), protocol.BuildJob{
		Commands: []string{"mkdir -p dist && echo $BUCKET_NAME > dist/bucket.txt"},
		Env:      map[string]string{"BUCKET_NAME": "bkt-1"},
		BaseDir:  "dist",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "bkt-1\n", string(result.Files["bucket.txt"]))
}

func TestLocalRunTimeout(t *testing.T) {
	sb := newTestSandbox()

	_, err := sb.Run(context.Background(), protocol.BuildJob{
		Commands: []string{"sleep 5"},
		Timeout:  100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestLocalRunMaterializesSource(t *testing.T) {
	sb := newTestSandbox()

	result, err := sb.Run(context.Background(), protocol.BuildJob{
		Source: map[string][]byte{
			"src/input.txt": []byte("payload"),
		},
		Commands: []string{"mkdir -p dist && cp src/input.txt dist/copied.txt"},
		BaseDir:  "dist",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "payload", string(result.Files["copied.txt"]))
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"**/*", "a/b/c.txt", true},
		{"", "anything", true},
		{"*.txt", "file.txt", true},
		{"*.txt", "dir/file.txt", false},
		{"**/*.txt", "dir/file.txt", true},
		{"**/*.txt", "dir/file.py", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.pattern, tt.rel), "pattern %q rel %q", tt.pattern, tt.rel)
	}
}
