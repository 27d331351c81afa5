package protocol

import (
	"context"
	"time"
)

// SourceHost is the source control collaborator: it resolves branch heads
// and produces immutable file-tree snapshots for a revision.
type SourceHost interface {
	// Head returns the current revision reference of a branch.
	Head(ctx context.Context, branch string) (string, error)

	// Checkout returns the file tree snapshot for a revision, keyed by
	// relative path. Fails with ErrRevisionNotFound or ErrAccessDenied.
	Checkout(ctx context.Context, revision string) (map[string][]byte, error)
}

// BuildJob describes one isolated build execution: a source tree, an ordered
// command list, environment variables, and the output contract (path glob
// under a base directory). Timeout bounds the job's wall clock.
type BuildJob struct {
	Source   map[string][]byte
	Commands []string
	Env      map[string]string
	BaseDir  string
	Files    string
	Timeout  time.Duration
}

// BuildResult reports the job's exit status and the output files collected
// per the job's contract. Output is the combined command output for
// operator inspection.
type BuildResult struct {
	ExitCode int
	Files    map[string][]byte
	Output   string
}

// Sandbox executes build jobs in an isolated, disposable environment.
// A non-zero exit is reported in the result, not as an error; errors are
// reserved for the sandbox itself failing (ErrTimeout included).
type Sandbox interface {
	Run(ctx context.Context, job BuildJob) (*BuildResult, error)
}

// PublishTarget is the durable location artifacts are published to.
// Fails with ErrWriteDenied.
type PublishTarget interface {
	Publish(ctx context.Context, location string, files map[string][]byte) error
}

// Provisioner is the declarative infrastructure engine: it applies a
// resource-graph template to a named stack and returns the stack's named
// outputs. Apply is idempotent at the engine; failure modes are
// ErrTemplateInvalid, ErrApplyConflict, and ErrPartialApplyFailure.
type Provisioner interface {
	Apply(ctx context.Context, stackName string, template []byte) (map[string]string, error)
}
