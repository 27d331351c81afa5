// Package coordinator owns the run lifecycle: it queues submitted
// revisions, enforces at-most-one-active-run per pipeline, executes stages
// in order through the runner, and publishes lifecycle events.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/eventbus"
	"github.com/conveyor-ci/conveyor/pkg/events"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/runner"
)

// pipelineQueue serializes a pipeline's runs: one active run at most, the
// rest waiting in submission order.
type pipelineQueue struct {
	active  string
	pending []*models.Run
}

// Coordinator drives runs for all pipelines. Stage execution happens in a
// per-run goroutine so Submit and Stop never block on long operations.
type Coordinator struct {
	persistence persistence.Persistence
	runner      *runner.Runner
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger

	mu      sync.Mutex
	queues  map[string]*pipelineQueue
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewCoordinator(
	p persistence.Persistence,
	r *runner.Runner,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		persistence: p,
		runner:      r,
		eventBus:    bus,
		logger:      logger.With("module", "coordinator"),
		queues:      make(map[string]*pipelineQueue),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Submit creates a run for the revision and enqueues it. A revision that is
// already represented by a non-terminal run is not enqueued again; the
// existing run is returned instead. The dedup check, the save, and the
// enqueue happen under c.mu, so concurrent submissions of the same revision
// (triggers racing the HTTP API) converge on a single run.
func (c *Coordinator) Submit(ctx context.Context, pipelineID, revision, triggerID string) (*models.Run, error) {
	if revision == "" {
		return nil, fmt.Errorf("revision must not be empty")
	}

	pipeline, err := c.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()

	existing, err := c.persistence.RunRepository().FindActiveByRevision(ctx, pipelineID, revision)
	if err == nil {
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "Revision already has an active run",
			"pipeline_id", pipelineID, "revision", revision, "run_id", existing.ID)

		return existing, nil
	}

	if !persistence.IsRunNotFound(err) {
		c.mu.Unlock()

		return nil, err
	}

	run := models.NewRun(pipeline.ID, revision)
	if err := c.persistence.RunRepository().Save(ctx, run); err != nil {
		c.mu.Unlock()

		return nil, err
	}

	queue := c.queue(pipeline.ID)
	if queue.active == "" {
		queue.active = run.ID
		c.start(run)
	} else {
		queue.pending = append(queue.pending, run)
	}

	c.mu.Unlock()

	c.publish(ctx, pipeline.ID, events.RunQueued{
		BaseEvent: events.NewBaseEvent(events.RunQueuedEvent, pipeline.ID),
		RunID:     run.ID,
		Revision:  revision,
		TriggerID: triggerID,
	})

	return run, nil
}

// Stop ends a run. A pending run is removed from its queue and marked
// stopped; an active run has its context cancelled and finalizes itself.
// Cancellation is advisory for work already in flight at a collaborator.
func (c *Coordinator) Stop(ctx context.Context, runID string) error {
	c.mu.Lock()

	if cancel, ok := c.cancels[runID]; ok {
		cancel()
		c.mu.Unlock()

		return nil
	}

	for _, queue := range c.queues {
		for i, pending := range queue.pending {
			if pending.ID != runID {
				continue
			}

			queue.pending = append(queue.pending[:i], queue.pending[i+1:]...)
			c.mu.Unlock()

			return c.finalizeStopped(ctx, pending)
		}
	}

	c.mu.Unlock()

	run, err := c.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	if run.Terminal() {
		return fmt.Errorf("%w: run %s is already %s", models.ErrInvalidTransition, runID, run.Status)
	}

	// Not tracked by this coordinator instance (e.g. orphaned after a
	// restart); mark it stopped directly.
	return c.finalizeStopped(ctx, run)
}

// Shutdown cancels every active run and waits for their goroutines.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// queue returns the pipeline's queue, creating it on first use. Caller
// holds c.mu.
func (c *Coordinator) queue(pipelineID string) *pipelineQueue {
	queue, ok := c.queues[pipelineID]
	if !ok {
		queue = &pipelineQueue{}
		c.queues[pipelineID] = queue
	}

	return queue
}

// start launches the run's goroutine. Caller holds c.mu.
func (c *Coordinator) start(run *models.Run) {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancels[run.ID] = cancel

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer cancel()

		c.execute(runCtx, run)
		c.finish(run)
	}()
}

// finish releases the pipeline's active slot and promotes the next pending
// run, if any.
func (c *Coordinator) finish(run *models.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cancels, run.ID)

	queue := c.queue(run.PipelineID)
	if queue.active != run.ID {
		return
	}

	queue.active = ""

	if len(queue.pending) > 0 {
		next := queue.pending[0]
		queue.pending = queue.pending[1:]
		queue.active = next.ID
		c.start(next)
	}
}

// execute drives one run from pending to a terminal state.
func (c *Coordinator) execute(ctx context.Context, run *models.Run) {
	logger := c.logger.With("pipeline_id", run.PipelineID, "run_id", run.ID, "revision", run.Revision)

	pipeline, err := c.persistence.PipelineRepository().GetByID(ctx, run.PipelineID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load pipeline for run", "error", err)
		c.failRun(ctx, run, &models.RunFailure{Kind: "internal", Message: err.Error()})

		return
	}

	if err := run.Start(); err != nil {
		logger.ErrorContext(ctx, "Failed to start run", "error", err)

		return
	}

	c.save(ctx, run)
	c.publish(ctx, pipeline.ID, events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, pipeline.ID),
		RunID:     run.ID,
		Revision:  run.Revision,
	})

	logger.InfoContext(ctx, "Run started", "stages", len(pipeline.Stages))

	for {
		if ctx.Err() != nil {
			c.stopRun(run)

			return
		}

		stage, ok := pipeline.StageByIndex(run.CurrentStageIndex)
		if !ok {
			break
		}

		if !c.executeStage(ctx, pipeline, run, stage, logger) {
			return
		}

		if err := run.AdvanceStage(); err != nil {
			logger.ErrorContext(ctx, "Failed to advance stage", "error", err)

			return
		}

		c.save(ctx, run)
	}

	if err := run.Succeed(); err != nil {
		logger.ErrorContext(ctx, "Failed to mark run succeeded", "error", err)

		return
	}

	c.save(ctx, run)
	c.publish(ctx, pipeline.ID, events.RunSucceeded{
		BaseEvent: events.NewBaseEvent(events.RunSucceededEvent, pipeline.ID),
		RunID:     run.ID,
		Revision:  run.Revision,
		Outputs:   run.Outputs,
		Duration:  runDuration(run),
	})

	logger.InfoContext(ctx, "Run succeeded", "outputs", len(run.Outputs))
}

// executeStage runs one stage and folds its result into the run. Returns
// false when the run reached a terminal state.
func (c *Coordinator) executeStage(
	ctx context.Context,
	pipeline *models.Pipeline,
	run *models.Run,
	stage *models.Stage,
	logger *slog.Logger,
) bool {
	stageIndex := run.CurrentStageIndex
	startedAt := time.Now()

	c.publish(ctx, pipeline.ID, events.StageStarted{
		BaseEvent:  events.NewBaseEvent(events.StageStartedEvent, pipeline.ID),
		RunID:      run.ID,
		StageName:  stage.Name,
		StageIndex: stageIndex,
	})

	result := c.runner.RunStage(ctx, pipeline, run, stage)

	finished := events.StageFinished{
		BaseEvent:  events.NewBaseEvent(events.StageFinishedEvent, pipeline.ID),
		RunID:      run.ID,
		StageName:  stage.Name,
		StageIndex: stageIndex,
		DurationMs: time.Since(startedAt).Milliseconds(),
	}

	if result.Err != nil {
		finished.Error = result.Err.Error()
	}

	c.publish(ctx, pipeline.ID, finished)

	for key, value := range result.Outputs {
		run.Outputs[key] = value
	}

	if result.Err == nil {
		return true
	}

	if ctx.Err() != nil {
		// The stage failed because the run was cancelled.
		c.stopRun(run)

		return false
	}

	failure := &models.RunFailure{
		Stage:   stage.Name,
		Kind:    protocol.FailureKind(result.Err),
		Message: result.Err.Error(),
	}
	if result.FailedAction != nil {
		failure.ActionType = result.FailedAction.Type
	}

	logger.ErrorContext(ctx, "Stage failed",
		"stage", stage.Name, "kind", failure.Kind, "error", result.Err)

	c.failRun(ctx, run, failure)

	return false
}

func (c *Coordinator) failRun(ctx context.Context, run *models.Run, failure *models.RunFailure) {
	if err := run.Fail(failure); err != nil {
		c.logger.ErrorContext(ctx, "Failed to mark run failed", "run_id", run.ID, "error", err)

		return
	}

	c.save(ctx, run)
	c.publish(ctx, run.PipelineID, events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, run.PipelineID),
		RunID:     run.ID,
		Revision:  run.Revision,
		Failure:   failure,
		Duration:  runDuration(run),
	})
}

// stopRun finalizes a run whose context was cancelled. Persistence uses a
// fresh context since the run's own is already dead.
func (c *Coordinator) stopRun(run *models.Run) {
	ctx := context.Background()

	if run.Terminal() {
		return
	}

	if err := c.finalizeStopped(ctx, run); err != nil {
		c.logger.ErrorContext(ctx, "Failed to finalize stopped run", "run_id", run.ID, "error", err)
	}
}

func (c *Coordinator) finalizeStopped(ctx context.Context, run *models.Run) error {
	if err := run.Stop(); err != nil {
		return err
	}

	if err := c.persistence.RunRepository().Save(ctx, run); err != nil {
		return err
	}

	c.publish(ctx, run.PipelineID, events.RunStopped{
		BaseEvent: events.NewBaseEvent(events.RunStoppedEvent, run.PipelineID),
		RunID:     run.ID,
		Revision:  run.Revision,
	})

	c.logger.InfoContext(ctx, "Run stopped", "run_id", run.ID)

	return nil
}

func (c *Coordinator) save(ctx context.Context, run *models.Run) {
	if err := c.persistence.RunRepository().Save(ctx, run); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist run", "run_id", run.ID, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	if err := c.eventBus.Publish(ctx, key, event); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func runDuration(run *models.Run) time.Duration {
	if run.StartedAt == nil || run.EndedAt == nil {
		return 0
	}

	return run.EndedAt.Sub(*run.StartedAt)
}
