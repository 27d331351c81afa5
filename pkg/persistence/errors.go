// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPipelineNotFound indicates no pipeline exists with the given
	// identifier.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrRunNotFound indicates no run exists with the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrPipelineAlreadyExists indicates a pipeline with the same identifier
	// already exists.
	ErrPipelineAlreadyExists = errors.New("pipeline already exists")
)

// PipelineError wraps pipeline storage failures with operation context.
type PipelineError struct {
	Op         string
	PipelineID string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s operation failed for pipeline %s: %v", e.Op, e.PipelineID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewPipelineError(op, pipelineID string, err error) *PipelineError {
	return &PipelineError{Op: op, PipelineID: pipelineID, Err: err}
}

// RunError wraps run storage failures with operation context.
type RunError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsPipelineNotFound checks if an error indicates a missing pipeline.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsRunNotFound checks if an error indicates a missing run.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
