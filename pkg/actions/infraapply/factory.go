package infraapply

import (
	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// ActionFactory creates infra apply actions bound to a provisioning engine
// and an artifact store.
type ActionFactory struct {
	provisioner protocol.Provisioner
	store       artifact.Store
}

func NewActionFactory(provisioner protocol.Provisioner, store artifact.Store) *ActionFactory {
	return &ActionFactory{provisioner: provisioner, store: store}
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.provisioner, f.store)
}

func (f *ActionFactory) ID() string {
	return string(models.ActionTypeInfraApply)
}

// Schema returns the JSON schema for configuring this action.
func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Name of the artifact carrying the provisioning template.",
				"examples":    []string{"BuildOutput"},
			},
			"template_path": map[string]any{
				"type":        "string",
				"description": "Path of the template file inside the artifact.",
				"default":     DefaultTemplatePath,
			},
			"stack_name": map[string]any{
				"type":        "string",
				"description": "Stack the template is applied to. Supports templating.",
				"examples":    []string{"PythonAppStack"},
			},
		},
		"required":             []string{"input", "stack_name"},
		"additionalProperties": false,
	}
}
