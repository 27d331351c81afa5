// Package registry maintains the closed set of action and trigger factories
// and validates pipeline definitions against it.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger           *slog.Logger
	actionFactories  map[string]protocol.ActionFactory
	triggerFactories map[string]protocol.TriggerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:           logger,
		actionFactories:  make(map[string]protocol.ActionFactory),
		triggerFactories: make(map[string]protocol.TriggerFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
}

func (r *Registry) RegisterTrigger(factory protocol.TriggerFactory) {
	r.triggerFactories[factory.ID()] = factory
}

func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(config)
}

func (r *Registry) CreateTrigger(triggerType string, config map[string]any) (protocol.Trigger, error) {
	factory, ok := r.triggerFactories[triggerType]
	if !ok {
		return nil, fmt.Errorf("trigger type '%s' not registered", triggerType)
	}

	return factory.Create(config, r.logger)
}

// ValidatePipeline checks every action spec in the definition against the
// registry: unknown tags and configurations that fail the factory's JSON
// schema are rejected here, at creation time, never at run time.
func (r *Registry) ValidatePipeline(pipeline *models.Pipeline) error {
	for _, stage := range pipeline.Stages {
		for _, action := range stage.Actions {
			factory, ok := r.actionFactories[string(action.Type)]
			if !ok {
				return fmt.Errorf("stage %q action %q: unknown action type '%s'", stage.Name, action.Name, action.Type)
			}

			if err := validateConfig(factory.Schema(), action.Configuration); err != nil {
				return fmt.Errorf("stage %q action %q: %w", stage.Name, action.Name, err)
			}
		}
	}

	for _, trigger := range pipeline.Triggers {
		if _, ok := r.triggerFactories[trigger.Type]; !ok {
			return fmt.Errorf("trigger %q: unknown trigger type '%s'", trigger.ID, trigger.Type)
		}
	}

	return nil
}

func validateConfig(schema map[string]any, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid configuration: %v", result.Errors())
	}

	return nil
}
