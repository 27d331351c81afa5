package sourcecheckout

import (
	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// ActionFactory creates source checkout actions bound to a source host and
// an artifact store.
type ActionFactory struct {
	host  protocol.SourceHost
	store artifact.Store
}

func NewActionFactory(host protocol.SourceHost, store artifact.Store) *ActionFactory {
	return &ActionFactory{host: host, store: store}
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.host, f.store)
}

func (f *ActionFactory) ID() string {
	return string(models.ActionTypeSourceCheckout)
}

// Schema returns the JSON schema for configuring this action.
func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"revision": map[string]any{
				"type":        "string",
				"description": "Explicit revision to check out. Defaults to the run's triggering revision. Supports templating.",
			},
			"branch": map[string]any{
				"type":        "string",
				"description": "Branch whose head is checked out when no revision is available.",
				"examples":    []string{"main"},
			},
			"artifact": map[string]any{
				"type":        "string",
				"description": "Name of the produced source artifact.",
				"default":     DefaultArtifactName,
			},
		},
		"additionalProperties": false,
	}
}
