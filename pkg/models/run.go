package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusStopped   RunStatus = "stopped"
)

// ErrInvalidTransition is returned when a run is asked to make a lifecycle
// transition its current status does not allow.
var ErrInvalidTransition = errors.New("invalid run status transition")

// RunFailure records the operator-facing failure site of a run: which stage,
// which action tag, and which error kind caused it.
type RunFailure struct {
	Stage      string     `json:"stage"`
	ActionType ActionType `json:"action_type,omitempty"`
	Kind       string     `json:"kind"`
	Message    string     `json:"message,omitempty"`
}

// Run is one execution of a pipeline for a specific source revision.
// Status transitions are monotonic: a run never re-enters a prior state and
// CurrentStageIndex only increases.
type Run struct {
	ID                string            `json:"id"`
	PipelineID        string            `json:"pipeline_id"`
	Revision          string            `json:"revision"`
	Status            RunStatus         `json:"status"`
	CurrentStageIndex int               `json:"current_stage_index"`
	Outputs           map[string]string `json:"outputs,omitempty"`
	Failure           *RunFailure       `json:"failure,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	EndedAt           *time.Time        `json:"ended_at,omitempty"`
}

// NewRun creates a pending run for the given pipeline and revision.
func NewRun(pipelineID, revision string) *Run {
	return &Run{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Revision:   revision,
		Status:     RunStatusPending,
		Outputs:    make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
}

// Terminal reports whether the run has reached a state with no outgoing
// transitions.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunStatusSucceeded, RunStatusFailed, RunStatusStopped:
		return true
	default:
		return false
	}
}

// Start moves the run from pending to running.
func (r *Run) Start() error {
	if r.Status != RunStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, RunStatusRunning)
	}

	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now

	return nil
}

// AdvanceStage moves the run's stage cursor forward. The index never
// decreases.
func (r *Run) AdvanceStage() error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: cannot advance stage while %s", ErrInvalidTransition, r.Status)
	}

	r.CurrentStageIndex++

	return nil
}

// Succeed marks the run as successfully completed.
func (r *Run) Succeed() error {
	return r.finish(RunStatusSucceeded)
}

// Fail marks the run as failed and records the failure site.
func (r *Run) Fail(failure *RunFailure) error {
	if err := r.finish(RunStatusFailed); err != nil {
		return err
	}

	r.Failure = failure

	return nil
}

// Stop marks the run as stopped by external request. Pending runs may be
// stopped without ever having run.
func (r *Run) Stop() error {
	if r.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, RunStatusStopped)
	}

	now := time.Now().UTC()
	r.Status = RunStatusStopped
	r.EndedAt = &now

	return nil
}

func (r *Run) finish(status RunStatus) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, status)
	}

	now := time.Now().UTC()
	r.Status = status
	r.EndedAt = &now

	return nil
}
