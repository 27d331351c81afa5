package queue

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewTrigger(t *testing.T) {
	tests := []struct {
		name        string
		config      map[string]any
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid_config",
			config: map[string]any{
				"id":    "queue-main",
				"queue": "conveyor_revisions",
				"connection": map[string]any{
					"addr":     "localhost:6379",
					"password": "",
					"db":       "0",
				},
			},
		},
		{
			name: "missing_queue",
			config: map[string]any{
				"id": "queue-main",
			},
			expectError: true,
			errorMsg:    "queue trigger queue name is required",
		},
		{
			name: "missing_id",
			config: map[string]any{
				"queue": "conveyor_revisions",
			},
			expectError: true,
			errorMsg:    "queue trigger ID is required",
		},
		{
			name: "connection_is_optional",
			config: map[string]any{
				"id":    "queue-main",
				"queue": "conveyor_revisions",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.config, testLogger())

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "queue-main", trigger.ID)
			assert.Equal(t, "conveyor_revisions", trigger.Queue)
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		wantRevision string
		expectError  bool
	}{
		{
			name:         "json_with_revision",
			message:      `{"revision": "rev-abc", "pusher": "ci-bot"}`,
			wantRevision: "rev-abc",
		},
		{
			name:        "json_without_revision",
			message:     `{"pusher": "ci-bot"}`,
			expectError: true,
		},
		{
			name:         "bare_string_is_the_revision",
			message:      "rev-plain",
			wantRevision: "rev-plain",
		},
		{
			name:        "empty_revision",
			message:     `{"revision": ""}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revision, data, err := decodeMessage(tt.message)

			if tt.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantRevision, revision)
			assert.NotEmpty(t, data["timestamp"])
		})
	}
}

func TestDecodeMessageKeepsPayloadFields(t *testing.T) {
	revision, data, err := decodeMessage(`{"revision": "rev-1", "branch": "main", "timestamp": "2026-01-02T03:04:05Z"}`)
	require.NoError(t, err)

	assert.Equal(t, "rev-1", revision)
	assert.Equal(t, "main", data["branch"])
	assert.Equal(t, "2026-01-02T03:04:05Z", data["timestamp"])
}

func TestFactoryID(t *testing.T) {
	factory := NewTriggerFactory()
	assert.Equal(t, "queue", factory.ID())
}
