package publish

import (
	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// ActionFactory creates artifact publish actions bound to a publish target
// and an artifact store.
type ActionFactory struct {
	target protocol.PublishTarget
	store  artifact.Store
}

func NewActionFactory(target protocol.PublishTarget, store artifact.Store) *ActionFactory {
	return &ActionFactory{target: target, store: store}
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.target, f.store)
}

func (f *ActionFactory) ID() string {
	return string(models.ActionTypeArtifactPublish)
}

// Schema returns the JSON schema for configuring this action.
func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Name of the artifact whose files are published.",
				"examples":    []string{"BuildOutput"},
			},
			"location": map[string]any{
				"type":        "string",
				"description": "Destination at the publish target. Supports templating.",
				"examples":    []string{"releases/{{.run_id}}"},
			},
		},
		"required":             []string{"input", "location"},
		"additionalProperties": false,
	}
}
