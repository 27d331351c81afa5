package template

import (
	"testing"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *models.ExecutionContext {
	return &models.ExecutionContext{
		ID:         "exec-1",
		PipelineID: "pipeline-1",
		RunID:      "run-1",
		Revision:   "abc123",
		Variables:  map[string]any{"bucket": "bkt-1"},
		Outputs:    map[string]string{"InstancePublicIp": "10.0.0.5"},
	}
}

func TestRenderPassesPlainStringsThrough(t *testing.T) {
	result, err := Render("pip install -r requirements.txt", testContext())
	require.NoError(t, err)
	assert.Equal(t, "pip install -r requirements.txt", result)
}

func TestRenderSubstitutesContext(t *testing.T) {
	result, err := Render("deploy/{{.revision}}/{{.run_id}}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "deploy/abc123/run-1", result)
}

func TestRenderVariables(t *testing.T) {
	result, err := Render("{{.variables.bucket}}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "bkt-1", result)
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{.unclosed", testContext())
	assert.Error(t, err)
}

func TestRenderMap(t *testing.T) {
	env, err := RenderMap(map[string]string{
		"BUCKET_NAME": "{{.variables.bucket}}",
		"REVISION":    "{{.revision}}",
		"STATIC":      "value",
	}, testContext())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"BUCKET_NAME": "bkt-1",
		"REVISION":    "abc123",
		"STATIC":      "value",
	}, env)
}

func TestRenderSliceKeepsOrder(t *testing.T) {
	commands, err := RenderSlice([]string{
		"echo {{.revision}}",
		"python build.py",
	}, testContext())
	require.NoError(t, err)

	assert.Equal(t, []string{"echo abc123", "python build.py"}, commands)
}
