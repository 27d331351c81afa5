// Package web provides the HTTP API for managing pipelines and runs.
package web

import "github.com/conveyor-ci/conveyor/pkg/models"

// CreatePipelineRequest is the request body for registering a pipeline
// definition. The ID is optional; one is generated when absent.
type CreatePipelineRequest struct {
	ID          string                `json:"id,omitempty"`
	Name        string                `json:"name"        validate:"required,min=3"`
	Description string                `json:"description"`
	Stages      []*models.Stage       `json:"stages"      validate:"required,min=1"`
	Triggers    []*models.TriggerSpec `json:"triggers,omitempty"`
	Variables   map[string]any        `json:"variables,omitempty"`
}

// SubmitRunRequest is the request body for manually submitting a revision.
type SubmitRunRequest struct {
	Revision  string `json:"revision" validate:"required"`
	TriggerID string `json:"trigger_id,omitempty"`
}

// RunOutputsResponse exposes the accumulated action outputs of a run, such
// as addresses resolved by infrastructure apply.
type RunOutputsResponse struct {
	RunID    string            `json:"run_id"`
	Status   models.RunStatus  `json:"status"`
	Outputs  map[string]string `json:"outputs"`
	Revision string            `json:"revision"`
}
