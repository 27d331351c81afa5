// Package template renders action configuration strings against the run's
// execution context, so definitions can reference the revision, variables,
// and outputs of earlier stages.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/models"
)

// Render evaluates a configuration string as a Go template against the
// execution context. Plain strings pass through unchanged.
func Render(input string, executionCtx *models.ExecutionContext) (string, error) {
	data := map[string]any{
		"revision":    executionCtx.Revision,
		"run_id":      executionCtx.RunID,
		"pipeline_id": executionCtx.PipelineID,
		"stage":       executionCtx.StageName,
		"variables":   executionCtx.Variables,
		"outputs":     executionCtx.Outputs,
		"metadata":    executionCtx.Metadata,
	}

	tmpl, err := template.
		New("config").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	return buf.String(), nil
}

// RenderMap renders every value of a string map, leaving keys untouched.
// Used for build environment variables.
func RenderMap(input map[string]string, executionCtx *models.ExecutionContext) (map[string]string, error) {
	rendered := make(map[string]string, len(input))

	for key, value := range input {
		result, err := Render(value, executionCtx)
		if err != nil {
			return nil, err
		}

		rendered[key] = result
	}

	return rendered, nil
}

// RenderSlice renders every element of a string slice in order. Used for
// build command lists.
func RenderSlice(input []string, executionCtx *models.ExecutionContext) ([]string, error) {
	rendered := make([]string, 0, len(input))

	for _, value := range input {
		result, err := Render(value, executionCtx)
		if err != nil {
			return nil, err
		}

		rendered = append(rendered, result)
	}

	return rendered, nil
}
