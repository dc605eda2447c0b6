package errors

import (
	"errors"
	"testing"
)

func TestCoreErrorUnwrap(t *testing.T) {
	cause := errors.New("element not found")
	ce := NewCoreError(KindElementMissing, cause, "take a snapshot first")

	if !errors.Is(ce, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if KindOf(ce) != KindElementMissing {
		t.Fatalf("KindOf() = %v, want %v", KindOf(ce), KindElementMissing)
	}
}

func TestKindOfDefaultsToExecutionError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindExecutionError {
		t.Fatalf("expected a plain error to classify as execution_error")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindTimeout, true},
		{KindNetworkError, true},
		{KindPermissionDenied, false},
		{KindPolicyBlocked, false},
		{KindSchemaError, false},
	}
	for _, tc := range cases {
		err := NewCoreError(tc.kind, errors.New("x"), "")
		if got := IsRetryable(err); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestIsFatalForGoal(t *testing.T) {
	if !IsFatalForGoal(NewCoreError(KindPermissionDenied, errors.New("x"), "enable screen recording")) {
		t.Fatal("expected permission_denied to be fatal")
	}
	if IsFatalForGoal(NewCoreError(KindTimeout, errors.New("x"), "")) {
		t.Fatal("expected timeout to not be fatal")
	}
}
