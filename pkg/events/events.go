// Package events defines event types for pipeline run lifecycle
// notifications.
package events

import (
	"time"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "conveyor.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunQueuedEvent     EventType = "run.queued"
	RunStartedEvent    EventType = "run.started"
	StageStartedEvent  EventType = "run.stage.started"
	StageFinishedEvent EventType = "run.stage.finished"
	RunSucceededEvent  EventType = "run.succeeded"
	RunFailedEvent     EventType = "run.failed"
	RunStoppedEvent    EventType = "run.stopped"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	PipelineID string         `json:"pipeline_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, pipelineID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
	}
}

type RunQueued struct {
	BaseEvent

	RunID     string `json:"run_id"`
	Revision  string `json:"revision"`
	TriggerID string `json:"trigger_id,omitempty"`
}

func (e RunQueued) GetType() EventType {
	return RunQueuedEvent
}

type RunStarted struct {
	BaseEvent

	RunID    string `json:"run_id"`
	Revision string `json:"revision"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type StageStarted struct {
	BaseEvent

	RunID      string `json:"run_id"`
	StageName  string `json:"stage_name"`
	StageIndex int    `json:"stage_index"`
}

func (e StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageFinished struct {
	BaseEvent

	RunID      string `json:"run_id"`
	StageName  string `json:"stage_name"`
	StageIndex int    `json:"stage_index"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func (e StageFinished) GetType() EventType {
	return StageFinishedEvent
}

type RunSucceeded struct {
	BaseEvent

	RunID    string            `json:"run_id"`
	Revision string            `json:"revision"`
	Outputs  map[string]string `json:"outputs,omitempty"`
	Duration time.Duration     `json:"duration"`
}

func (e RunSucceeded) GetType() EventType {
	return RunSucceededEvent
}

type RunFailed struct {
	BaseEvent

	RunID    string             `json:"run_id"`
	Revision string             `json:"revision"`
	Failure  *models.RunFailure `json:"failure,omitempty"`
	Duration time.Duration      `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunStopped struct {
	BaseEvent

	RunID    string `json:"run_id"`
	Revision string `json:"revision"`
}

func (e RunStopped) GetType() EventType {
	return RunStoppedEvent
}
