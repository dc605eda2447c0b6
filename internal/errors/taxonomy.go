package errors

import goerrors "errors"

// Kind is the fixed error taxonomy from which the Action Executor, Planner
// and Verifier classify every failure. It is deliberately closed: anything
// that doesn't fit is ExecutionError.
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindPermissionDenied Kind = "permission_denied"
	KindNetworkError     Kind = "network_error"
	KindElementMissing   Kind = "element_missing"
	KindVerifyFail       Kind = "verify_fail"
	KindTestsFail        Kind = "tests_fail"
	KindLintFail         Kind = "lint_fail"
	KindBuildFail        Kind = "build_fail"
	KindExecutionError   Kind = "execution_error"
	KindSchemaError      Kind = "schema_error"
	KindPolicyBlocked    Kind = "policy_blocked"
)

// CoreError pairs a taxonomy Kind with the underlying cause and, where
// relevant, operator-facing remediation text (§7: "one concrete next step").
type CoreError struct {
	Kind        Kind
	Err         error
	Remediation string
}

func (e *CoreError) Error() string {
	if e.Remediation != "" {
		return string(e.Kind) + ": " + e.Err.Error() + " (" + e.Remediation + ")"
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *CoreError) Unwrap() error { return e.Err }

// NewCoreError builds a CoreError of the given kind.
func NewCoreError(kind Kind, err error, remediation string) *CoreError {
	return &CoreError{Kind: kind, Err: err, Remediation: remediation}
}

// KindOf extracts the taxonomy Kind from err, or KindExecutionError if err is
// not (or does not wrap) a *CoreError.
func KindOf(err error) Kind {
	var ce *CoreError
	if goerrors.As(err, &ce) {
		return ce.Kind
	}
	return KindExecutionError
}

// IsRetryable reports whether §7's propagation rules call for automatic
// retry: timeout and network_error are retried by the Action Executor up to
// EXECUTOR_MAX_RETRIES with linear backoff; everything else is not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindNetworkError:
		return true
	default:
		return false
	}
}

// IsFatalForGoal reports whether §7 treats this Kind as fatal to the current
// goal run (never retried automatically, surfaced with remediation text).
func IsFatalForGoal(err error) bool {
	return KindOf(err) == KindPermissionDenied
}
