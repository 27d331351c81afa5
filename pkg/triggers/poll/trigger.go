// Package poll provides a trigger that periodically checks a source host
// branch head and fires when it moves to a revision it has not seen.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

const DefaultSchedule = "@every 1m"

type Trigger struct {
	ID       string
	Branch   string
	Schedule string

	host     protocol.SourceHost
	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger

	mu           sync.Mutex
	lastRevision string
}

func NewTrigger(config map[string]any, host protocol.SourceHost, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	branch, _ := config["branch"].(string)

	schedule, ok := config["schedule"].(string)
	if !ok || schedule == "" {
		schedule = DefaultSchedule
	}

	trigger := &Trigger{
		ID:       id,
		Branch:   branch,
		Schedule: schedule,
		host:     host,
		logger: logger.With(
			"module", "poll_trigger",
			"trigger_id", id,
			"branch", branch,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("poll trigger ID is required")
	}

	if t.Branch == "" {
		return fmt.Errorf("poll trigger branch is required")
	}

	if _, err := cron.ParseStandard(t.Schedule); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", t.Schedule, err)
	}

	return nil
}

// Start begins polling on the configured schedule. The callback fires only
// when the branch head differs from the last revision this trigger saw; a
// head that has not moved is silently skipped.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.callback = callback
	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := t.cron.AddFunc(t.Schedule, func() {
		t.poll(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poll: %w", err)
	}

	t.logger.InfoContext(ctx, "Starting poll trigger", "schedule", t.Schedule)
	t.cron.Start()

	return nil
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping poll trigger")

	if t.cron != nil {
		stopCtx := t.cron.Stop()
		<-stopCtx.Done()
	}

	return nil
}

// poll reads the branch head once and fires the callback if it moved.
func (t *Trigger) poll(ctx context.Context) {
	head, err := t.host.Head(ctx, t.Branch)
	if err != nil {
		// A branch with no head yet is not an error worth shouting about.
		if errors.Is(err, protocol.ErrRevisionNotFound) {
			t.logger.DebugContext(ctx, "Branch has no head yet")
		} else {
			t.logger.ErrorContext(ctx, "Failed to read branch head", "error", err)
		}

		return
	}

	t.mu.Lock()
	if head == t.lastRevision {
		t.mu.Unlock()

		return
	}

	t.lastRevision = head
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "Branch head moved", "revision", head)

	data := map[string]any{
		"branch":      t.Branch,
		"observed_at": time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(ctx, head, data); err != nil {
		t.logger.ErrorContext(ctx, "Trigger callback failed", "revision", head, "error", err)
	}
}
