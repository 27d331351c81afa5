// Package provision provides provisioning engine collaborator
// implementations for infra apply actions.
package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Template is the resource-graph document carried inside a deploy artifact.
// Output values may reference resource attributes as "${Resource.attr}".
type Template struct {
	Resources map[string]*Resource `yaml:"resources"`
	Outputs   map[string]string    `yaml:"outputs"`
}

// Resource is one node of the resource graph. UserData is the ordered
// bootstrap command list executed once at instance boot; the engine records
// it with the stack state, there is no feedback channel beyond outputs.
type Resource struct {
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties"`
	UserData   []string       `yaml:"user_data"`
}

// StackState is the persisted result of applying a template to a stack.
type StackState struct {
	Name      string                       `json:"name"`
	Resources map[string]map[string]string `json:"resources"`
	Outputs   map[string]string            `json:"outputs"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// Local is a directory-backed provisioning engine for development and
// tests. It parses resource-graph templates, materializes stack state under
// stacks/, and enforces one apply at a time per stack via a lock file:
// a held lock surfaces as ErrApplyConflict, which is the transient,
// retryable failure of the taxonomy.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(root, "stacks"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to initialize provisioner: %w", err)
	}

	return &Local{root: root}, nil
}

func (l *Local) Apply(ctx context.Context, stackName string, templateData []byte) (map[string]string, error) {
	var tmpl Template
	if err := yaml.Unmarshal(templateData, &tmpl); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrTemplateInvalid, err)
	}

	if len(tmpl.Resources) == 0 {
		return nil, fmt.Errorf("%w: template declares no resources", protocol.ErrTemplateInvalid)
	}

	unlock, err := l.lock(stackName)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state := &StackState{
		Name:      stackName,
		Resources: make(map[string]map[string]string),
		UpdatedAt: time.Now().UTC(),
	}

	names := make([]string, 0, len(tmpl.Resources))
	for name := range tmpl.Resources {
		names = append(names, name)
	}

	sort.Strings(names)

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, l.partialFailure(state, fmt.Errorf("apply cancelled: %w", err))
		}

		resource := tmpl.Resources[name]

		attrs, err := provisionResource(name, resource, i)
		if err != nil {
			// Resources already in the state were created before the
			// failure; rollback is the engine operator's concern.
			return nil, l.partialFailure(state, err)
		}

		state.Resources[name] = attrs
	}

	outputs, err := resolveOutputs(tmpl.Outputs, state.Resources)
	if err != nil {
		return nil, err
	}

	state.Outputs = outputs

	if err := l.saveState(state); err != nil {
		return nil, l.partialFailure(state, err)
	}

	return outputs, nil
}

// Stack returns the persisted state of a previously applied stack.
func (l *Local) Stack(stackName string) (*StackState, error) {
	data, err := os.ReadFile(l.statePath(stackName))
	if err != nil {
		return nil, fmt.Errorf("failed to read stack %q: %w", stackName, err)
	}

	var state StackState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode stack %q: %w", stackName, err)
	}

	return &state, nil
}

func (l *Local) lock(stackName string) (func(), error) {
	lockPath := filepath.Join(l.root, "stacks", stackName+".lock")

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return nil, fmt.Errorf("%w: stack %q is being updated", protocol.ErrApplyConflict, stackName)
	}

	if err != nil {
		return nil, err
	}

	file.Close()

	return func() { os.Remove(lockPath) }, nil
}

func (l *Local) partialFailure(state *StackState, cause error) error {
	// Persist whatever was created so operators can inspect the orphans.
	_ = l.saveState(state)

	return fmt.Errorf("%w: %v", protocol.ErrPartialApplyFailure, cause)
}

func (l *Local) saveState(state *StackState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(l.statePath(state.Name), data, 0o644)
}

func (l *Local) statePath(stackName string) string {
	return filepath.Join(l.root, "stacks", stackName+".json")
}

func provisionResource(name string, resource *Resource, ordinal int) (map[string]string, error) {
	if resource == nil || resource.Type == "" {
		return nil, fmt.Errorf("resource %q has no type", name)
	}

	if fail, _ := resource.Properties["fail"].(bool); fail {
		return nil, fmt.Errorf("resource %q failed to provision", name)
	}

	attrs := map[string]string{
		"id":   fmt.Sprintf("%s-%d", strings.ToLower(resource.Type), ordinal),
		"type": resource.Type,
	}

	if strings.Contains(resource.Type, "instance") {
		attrs["address"] = fmt.Sprintf("10.0.0.%d", 10+ordinal)
	}

	if len(resource.UserData) > 0 {
		attrs["user_data"] = strings.Join(resource.UserData, "\n")
	}

	return attrs, nil
}

// resolveOutputs substitutes "${Resource.attr}" references with provisioned
// attribute values; unresolvable references mean the template promised an
// output the graph cannot provide.
func resolveOutputs(declared map[string]string, resources map[string]map[string]string) (map[string]string, error) {
	outputs := make(map[string]string, len(declared))

	for key, value := range declared {
		if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
			outputs[key] = value

			continue
		}

		ref := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")

		resourceName, attr, found := strings.Cut(ref, ".")
		if !found {
			return nil, fmt.Errorf("%w: output %q has malformed reference %q", protocol.ErrTemplateInvalid, key, value)
		}

		attrs, ok := resources[resourceName]
		if !ok {
			return nil, fmt.Errorf("%w: output %q references unknown resource %q", protocol.ErrTemplateInvalid, key, resourceName)
		}

		resolved, ok := attrs[attr]
		if !ok {
			return nil, fmt.Errorf("%w: output %q references unknown attribute %q of %q", protocol.ErrTemplateInvalid, key, attr, resourceName)
		}

		outputs[key] = resolved
	}

	return outputs, nil
}
