package models

// ExecutionContext carries the per-run data an action needs: the revision
// being delivered, the artifacts resolved so far, and the outputs collected
// from completed actions.
type ExecutionContext struct {
	ID         string              `json:"id"`
	PipelineID string              `json:"pipeline_id"`
	RunID      string              `json:"run_id"`
	Revision   string              `json:"revision"`
	StageName  string              `json:"stage_name"`
	Variables  map[string]any      `json:"variables,omitempty"`
	Artifacts  map[string]Artifact `json:"artifacts,omitempty"`
	Outputs    map[string]string   `json:"outputs,omitempty"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
}
