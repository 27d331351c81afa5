// Package models defines the core domain models for delivery pipeline orchestration.
package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// SourceArtifactName is the reserved input name that denotes the run's
// revision reference itself rather than a stored artifact. Only stage 0
// may consume it.
const SourceArtifactName = "Source"

// ActionType identifies one of the closed set of action variants.
type ActionType string

const (
	ActionTypeSourceCheckout  ActionType = "source_checkout"
	ActionTypeBuildExecute    ActionType = "build_execute"
	ActionTypeArtifactPublish ActionType = "artifact_publish"
	ActionTypeInfraApply      ActionType = "infra_apply"
)

// Pipeline is an immutable delivery pipeline definition. It is validated
// once at creation time and shared read-only by every run.
type Pipeline struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Stages      []*Stage       `json:"stages"      validate:"required,min=1,dive"`
	Triggers    []*TriggerSpec `json:"triggers,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Stage is a named, ordered step of the pipeline definition.
type Stage struct {
	Name            string        `json:"name"    validate:"required"`
	Actions         []*ActionSpec `json:"actions" validate:"required,min=1,dive"`
	InputArtifacts  []string      `json:"input_artifacts,omitempty"`
	OutputArtifacts []string      `json:"output_artifacts,omitempty"`
}

// ActionSpec declares one unit of work inside a stage: a tag plus its
// variant-specific parameters.
type ActionSpec struct {
	ID            string         `json:"id"`
	Type          ActionType     `json:"type" validate:"required"`
	Name          string         `json:"name" validate:"required"`
	Configuration map[string]any `json:"configuration"`
}

// TriggerSpec declares an external event source that creates runs for this
// pipeline.
type TriggerSpec struct {
	ID            string         `json:"id"`
	Type          string         `json:"type" validate:"required"`
	Configuration map[string]any `json:"configuration"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural invariants of the definition: struct tags,
// unique stage names, and the artifact flow rule that every declared input
// is produced by an earlier stage or is the initial source artifact.
// Action tags and configuration schemas are validated by the registry.
func (p *Pipeline) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid pipeline definition: %w", err)
	}

	seen := make(map[string]bool, len(p.Stages))
	produced := make(map[string]bool)

	for i, stage := range p.Stages {
		if seen[stage.Name] {
			return fmt.Errorf("duplicate stage name %q", stage.Name)
		}

		seen[stage.Name] = true

		for _, input := range stage.InputArtifacts {
			if input == SourceArtifactName {
				if i != 0 {
					return fmt.Errorf("stage %q: artifact %q is only available to the first stage", stage.Name, SourceArtifactName)
				}

				continue
			}

			if !produced[input] {
				return fmt.Errorf("stage %q: input artifact %q is not produced by any earlier stage", stage.Name, input)
			}
		}

		for _, output := range stage.OutputArtifacts {
			if output == SourceArtifactName {
				return fmt.Errorf("stage %q: %q is a reserved artifact name", stage.Name, SourceArtifactName)
			}

			produced[output] = true
		}
	}

	return nil
}

// StageByIndex returns the stage at the given ordinal position.
func (p *Pipeline) StageByIndex(i int) (*Stage, bool) {
	if i < 0 || i >= len(p.Stages) {
		return nil, false
	}

	return p.Stages[i], true
}
