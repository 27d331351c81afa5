package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/conveyor-ci/conveyor/pkg/coordinator"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/registry"
)

// TriggerManager starts the declared triggers of every stored pipeline and
// routes observed revisions into the coordinator's queue.
type TriggerManager struct {
	id          string
	persistence persistence.Persistence
	registry    *registry.Registry
	coordinator *coordinator.Coordinator
	logger      *slog.Logger

	mu              sync.Mutex
	runningTriggers map[string]protocol.Trigger
}

func NewTriggerManager(
	id string,
	p persistence.Persistence,
	reg *registry.Registry,
	coord *coordinator.Coordinator,
	logger *slog.Logger,
) *TriggerManager {
	return &TriggerManager{
		id:              id,
		persistence:     p,
		registry:        reg,
		coordinator:     coord,
		logger:          logger.With("module", "trigger_manager"),
		runningTriggers: make(map[string]protocol.Trigger),
	}
}

// Start launches all pipeline triggers and blocks until a shutdown signal
// arrives or the context is cancelled.
func (tm *TriggerManager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipelines, err := tm.persistence.PipelineRepository().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pipelines: %w", err)
	}

	tm.logger.InfoContext(ctx, "Starting trigger manager", "pipelines", len(pipelines))

	for _, pipeline := range pipelines {
		tm.startPipelineTriggers(ctx, pipeline)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		tm.logger.InfoContext(ctx, "Shutting down trigger manager...")
	case <-ctx.Done():
	}

	tm.stopAll(context.Background())

	return nil
}

func (tm *TriggerManager) startPipelineTriggers(ctx context.Context, pipeline *models.Pipeline) {
	logger := tm.logger.With("pipeline_id", pipeline.ID, "pipeline_name", pipeline.Name)

	for _, spec := range pipeline.Triggers {
		config := make(map[string]any, len(spec.Configuration)+2)
		for k, v := range spec.Configuration {
			config[k] = v
		}

		config["id"] = spec.ID
		config["pipeline_id"] = pipeline.ID

		trigger, err := tm.registry.CreateTrigger(spec.Type, config)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to create trigger",
				"trigger_id", spec.ID, "trigger_type", spec.Type, "error", err)

			continue
		}

		callback := tm.submitCallback(pipeline.ID, spec.ID)

		if err := trigger.Start(ctx, callback); err != nil {
			logger.ErrorContext(ctx, "Failed to start trigger",
				"trigger_id", spec.ID, "trigger_type", spec.Type, "error", err)

			continue
		}

		tm.mu.Lock()
		tm.runningTriggers[pipeline.ID+"/"+spec.ID] = trigger
		tm.mu.Unlock()

		logger.InfoContext(ctx, "Started trigger",
			"trigger_id", spec.ID, "trigger_type", spec.Type)
	}
}

// submitCallback hands an observed revision to the coordinator. Submission
// is idempotent for revisions that already have a non-terminal run, so
// triggers may fire at-least-once without creating duplicates.
func (tm *TriggerManager) submitCallback(pipelineID, triggerID string) protocol.TriggerCallback {
	return func(ctx context.Context, revision string, data map[string]any) error {
		logger := tm.logger.With(
			"pipeline_id", pipelineID,
			"trigger_id", triggerID,
			"revision", revision,
		)

		run, err := tm.coordinator.Submit(ctx, pipelineID, revision, triggerID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to submit revision", "error", err)

			return err
		}

		logger.InfoContext(ctx, "Revision submitted", "run_id", run.ID)

		return nil
	}
}

func (tm *TriggerManager) stopAll(ctx context.Context) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for key, trigger := range tm.runningTriggers {
		if err := trigger.Stop(ctx); err != nil {
			tm.logger.ErrorContext(ctx, "Failed to stop trigger", "trigger", key, "error", err)
		}

		delete(tm.runningTriggers, key)
	}
}
