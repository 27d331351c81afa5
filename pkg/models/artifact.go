package models

import "time"

// Artifact is an immutable, versioned file bundle associated with one run.
// ContentRef is content-addressed: identical bytes always yield the same
// reference, and a stored artifact's reference is never mutated. Re-running
// a stage supersedes the (run, name) binding with a new reference; it never
// rewrites the old content.
type Artifact struct {
	RunID           string    `json:"run_id"`
	Name            string    `json:"name"`
	ContentRef      string    `json:"content_ref"`
	Size            int64     `json:"size"`
	ProducedByStage string    `json:"produced_by_stage,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
