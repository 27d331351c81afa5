package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPipeline() *Pipeline {
	return &Pipeline{
		ID:   "pipeline-1",
		Name: "python-app",
		Stages: []*Stage{
			{
				Name: "Source",
				Actions: []*ActionSpec{
					{ID: "checkout", Type: ActionTypeSourceCheckout, Name: "CodeCheckout"},
				},
				InputArtifacts:  []string{SourceArtifactName},
				OutputArtifacts: []string{"SourceOutput"},
			},
			{
				Name: "Build",
				Actions: []*ActionSpec{
					{ID: "build", Type: ActionTypeBuildExecute, Name: "Build"},
				},
				InputArtifacts:  []string{"SourceOutput"},
				OutputArtifacts: []string{"BuildOutput"},
			},
			{
				Name: "Deploy",
				Actions: []*ActionSpec{
					{ID: "publish", Type: ActionTypeArtifactPublish, Name: "Deploy"},
					{ID: "stack", Type: ActionTypeInfraApply, Name: "UpdateStack"},
				},
				InputArtifacts: []string{"BuildOutput"},
			},
		},
	}
}

func TestPipelineValidate(t *testing.T) {
	require.NoError(t, validPipeline().Validate())
}

func TestPipelineValidateRejectsUnknownInput(t *testing.T) {
	p := validPipeline()
	p.Stages[1].InputArtifacts = []string{"MissingOutput"}

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MissingOutput")
}

func TestPipelineValidateRejectsInputProducedLater(t *testing.T) {
	p := validPipeline()
	// Source stage cannot consume what Build produces.
	p.Stages[0].InputArtifacts = []string{"BuildOutput"}

	assert.Error(t, p.Validate())
}

func TestPipelineValidateSourceArtifactOnlyInFirstStage(t *testing.T) {
	p := validPipeline()
	p.Stages[2].InputArtifacts = append(p.Stages[2].InputArtifacts, SourceArtifactName)

	assert.Error(t, p.Validate())
}

func TestPipelineValidateRejectsReservedOutputName(t *testing.T) {
	p := validPipeline()
	p.Stages[0].OutputArtifacts = []string{SourceArtifactName}

	assert.Error(t, p.Validate())
}

func TestPipelineValidateRejectsDuplicateStageNames(t *testing.T) {
	p := validPipeline()
	p.Stages[1].Name = "Source"

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate stage name")
}

func TestPipelineValidateRequiresStages(t *testing.T) {
	p := &Pipeline{ID: "pipeline-1", Name: "empty"}

	assert.Error(t, p.Validate())
}

func TestStageByIndex(t *testing.T) {
	p := validPipeline()

	stage, ok := p.StageByIndex(1)
	require.True(t, ok)
	assert.Equal(t, "Build", stage.Name)

	_, ok = p.StageByIndex(3)
	assert.False(t, ok)

	_, ok = p.StageByIndex(-1)
	assert.False(t, ok)
}
