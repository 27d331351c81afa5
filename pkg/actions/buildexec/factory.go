package buildexec

import (
	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// ActionFactory creates build execute actions bound to a sandbox and an
// artifact store.
type ActionFactory struct {
	sandbox protocol.Sandbox
	store   artifact.Store
}

func NewActionFactory(sandbox protocol.Sandbox, store artifact.Store) *ActionFactory {
	return &ActionFactory{sandbox: sandbox, store: store}
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.sandbox, f.store)
}

func (f *ActionFactory) ID() string {
	return string(models.ActionTypeBuildExecute)
}

// Schema returns the JSON schema for configuring this action.
func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Name of the artifact extracted into the build workspace.",
				"examples":    []string{"SourceOutput"},
			},
			"artifact": map[string]any{
				"type":        "string",
				"description": "Name of the produced build artifact.",
				"default":     DefaultArtifactName,
			},
			"commands": map[string]any{
				"type":        "array",
				"description": "Ordered command list run inside the workspace. Supports templating.",
				"items":       map[string]any{"type": "string"},
				"examples": [][]string{
					{"pip install -r requirements.txt", "python build.py"},
				},
			},
			"env": map[string]any{
				"type":        "object",
				"description": "Environment variables visible to every command. Values support templating.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"base_dir": map[string]any{
				"type":        "string",
				"description": "Directory under the workspace where output files are collected.",
				"examples":    []string{"dist"},
			},
			"files": map[string]any{
				"type":        "string",
				"description": "Glob selecting output files under base_dir.",
				"default":     "**/*",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Wall-clock budget for the whole job, in seconds.",
				"minimum":     1,
			},
		},
		"required":             []string{"input", "commands"},
		"additionalProperties": false,
	}
}
