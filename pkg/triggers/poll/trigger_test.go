package poll

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/sourcehost"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type callbackRecorder struct {
	mu        sync.Mutex
	revisions []string
	data      []map[string]any
}

func (r *callbackRecorder) callback(_ context.Context, revision string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revisions = append(r.revisions, revision)
	r.data = append(r.data, data)

	return nil
}

func (r *callbackRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.revisions...)
}

func TestNewTrigger(t *testing.T) {
	host, err := sourcehost.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name        string
		config      map[string]any
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid_config",
			config: map[string]any{
				"id":       "poll-main",
				"branch":   "main",
				"schedule": "@every 30s",
			},
		},
		{
			name: "default_schedule",
			config: map[string]any{
				"id":     "poll-main",
				"branch": "main",
			},
		},
		{
			name: "missing_id",
			config: map[string]any{
				"branch": "main",
			},
			expectError: true,
			errorMsg:    "poll trigger ID is required",
		},
		{
			name: "missing_branch",
			config: map[string]any{
				"id": "poll-main",
			},
			expectError: true,
			errorMsg:    "poll trigger branch is required",
		},
		{
			name: "invalid_schedule",
			config: map[string]any{
				"id":       "poll-main",
				"branch":   "main",
				"schedule": "not-a-schedule",
			},
			expectError: true,
			errorMsg:    "invalid poll schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.config, host, testLogger())

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "poll-main", trigger.ID)
			assert.Equal(t, "main", trigger.Branch)

			if tt.config["schedule"] == nil {
				assert.Equal(t, DefaultSchedule, trigger.Schedule)
			}
		})
	}
}

func TestPollFiresOnlyWhenHeadMoves(t *testing.T) {
	host, err := sourcehost.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	trigger, err := NewTrigger(map[string]any{
		"id":     "poll-main",
		"branch": "main",
	}, host, testLogger())
	require.NoError(t, err)

	recorder := &callbackRecorder{}
	trigger.callback = recorder.callback

	ctx := context.Background()

	// No head yet: nothing fires.
	trigger.poll(ctx)
	assert.Empty(t, recorder.seen())

	require.NoError(t, host.Commit("main", "rev-1", map[string][]byte{
		"app.py": []byte("print('hi')\n"),
	}))

	trigger.poll(ctx)
	assert.Equal(t, []string{"rev-1"}, recorder.seen())

	// Head unchanged: no duplicate fire.
	trigger.poll(ctx)
	trigger.poll(ctx)
	assert.Equal(t, []string{"rev-1"}, recorder.seen())

	require.NoError(t, host.Commit("main", "rev-2", map[string][]byte{
		"app.py": []byte("print('bye')\n"),
	}))

	trigger.poll(ctx)
	assert.Equal(t, []string{"rev-1", "rev-2"}, recorder.seen())

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, "main", recorder.data[0]["branch"])
	assert.NotEmpty(t, recorder.data[0]["observed_at"])
}

func TestStartAndStop(t *testing.T) {
	host, err := sourcehost.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	trigger, err := NewTrigger(map[string]any{
		"id":       "poll-main",
		"branch":   "main",
		"schedule": "@every 1h",
	}, host, testLogger())
	require.NoError(t, err)

	ctx := context.Background()

	recorder := &callbackRecorder{}
	require.NoError(t, trigger.Start(ctx, recorder.callback))
	require.NoError(t, trigger.Stop(ctx))
}

func TestFactoryCreatesTrigger(t *testing.T) {
	host, err := sourcehost.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	factory := NewTriggerFactory(host)
	assert.Equal(t, "poll", factory.ID())

	trigger, err := factory.Create(map[string]any{
		"id":     "poll-main",
		"branch": "main",
	}, testLogger())
	require.NoError(t, err)

	var _ protocol.Trigger = trigger
	assert.NoError(t, trigger.Validate())
}
