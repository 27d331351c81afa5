// Package protocol defines the interfaces and contracts between the pipeline
// engine and its pluggable actions, triggers, and external collaborators.
package protocol

import "errors"

// Failure taxonomy for action execution. Actions wrap these sentinels so the
// coordinator can surface a stable error kind without knowing vendor
// mechanics. No failure is retried automatically except ErrApplyConflict,
// which gets a small bounded retry inside the infra_apply action.
var (
	// ErrContractViolation indicates a stage reported success but a declared
	// output artifact was never produced.
	ErrContractViolation = errors.New("declared output artifact not produced")

	// ErrRevisionNotFound indicates the source host has no such revision.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrAccessDenied indicates the source host refused the checkout.
	ErrAccessDenied = errors.New("access denied")

	// ErrBuildFailed indicates a build job exited non-zero.
	ErrBuildFailed = errors.New("build failed")

	// ErrTimeout indicates a build job exceeded its wall-clock budget.
	ErrTimeout = errors.New("timeout")

	// ErrWriteDenied indicates the publish target refused the write.
	ErrWriteDenied = errors.New("write denied")

	// ErrTemplateInvalid indicates the provisioning template could not be
	// parsed.
	ErrTemplateInvalid = errors.New("template invalid")

	// ErrApplyConflict indicates a concurrent update to the same stack.
	ErrApplyConflict = errors.New("apply conflict")

	// ErrPartialApplyFailure indicates an infra apply failed after some
	// resources were created. The run is failed; rollback of orphaned
	// resources is the provisioning engine's responsibility.
	ErrPartialApplyFailure = errors.New("partial apply failure")
)

var kinds = map[error]string{
	ErrContractViolation:   "contract_violation",
	ErrRevisionNotFound:    "revision_not_found",
	ErrAccessDenied:        "access_denied",
	ErrBuildFailed:         "build_failed",
	ErrTimeout:             "timeout",
	ErrWriteDenied:         "write_denied",
	ErrTemplateInvalid:     "template_invalid",
	ErrApplyConflict:       "apply_conflict",
	ErrPartialApplyFailure: "partial_apply_failure",
}

// FailureKind maps an action error to its stable operator-facing kind.
// Unrecognized errors report as "internal".
func FailureKind(err error) string {
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}

	return "internal"
}
