package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
)

func TestNewInteractiveApprover(t *testing.T) {
	approver := NewInteractiveApprover(60*time.Second, false, true)
	assert.NotNil(t, approver)
	assert.Equal(t, 60*time.Second, approver.timeout)
	assert.False(t, approver.autoApprove)
	assert.True(t, approver.colorEnabled)
}

func TestInteractiveApprover_AutoApprove(t *testing.T) {
	approver := NewInteractiveApprover(60*time.Second, true, false)

	req := Request{
		Kind:        "exec_approval",
		Description: "run tests",
		Command:     "go test ./...",
	}

	ctx := context.Background()
	resp, err := approver.RequestApproval(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, coreapi.DecisionAllowOnce, resp.Decision)
}

func TestInteractiveApprover_TimeoutDeniesByDefault(t *testing.T) {
	approver := NewInteractiveApprover(1*time.Millisecond, false, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := approver.RequestApproval(ctx, Request{Kind: "warn", Description: "mutating action"})
	require.NoError(t, err)
	assert.False(t, resp.Approved)
	assert.Equal(t, coreapi.DecisionDeny, resp.Decision)
}

func TestInteractiveApprover_Colorize(t *testing.T) {
	tests := []struct {
		name         string
		colorEnabled bool
	}{
		{name: "with color enabled", colorEnabled: true},
		{name: "with color disabled", colorEnabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approver := NewInteractiveApprover(60*time.Second, false, tt.colorEnabled)
			result := approver.colorize("test")
			assert.Contains(t, result, "test")
			if !tt.colorEnabled {
				assert.Equal(t, "test", result)
			}
		})
	}
}

func TestNoOpApprover(t *testing.T) {
	approver := NewNoOpApprover()
	assert.NotNil(t, approver)

	ctx := context.Background()
	resp, err := approver.RequestApproval(ctx, Request{Kind: "exec_approval", Command: "ls"})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, coreapi.DecisionAllowOnce, resp.Decision)
}

func TestInteractiveApprover_DisplayDoesNotPanic(t *testing.T) {
	approver := NewInteractiveApprover(60*time.Second, false, false)
	assert.NotPanics(t, func() {
		approver.display(Request{Kind: "exec_approval", Command: "rm -rf build/", Diff: "--- a\n+++ b\n"})
	})
}

// MockApprover lets other packages' tests (policy, planner) script a fixed
// resolution sequence without a terminal.
type MockApprover struct {
	Resolution Resolution
	Error      error
}

func (m *MockApprover) RequestApproval(ctx context.Context, req Request) (Resolution, error) {
	if m.Error != nil {
		return Resolution{}, m.Error
	}
	return m.Resolution, nil
}

func TestMockApprover(t *testing.T) {
	mock := &MockApprover{Resolution: Resolution{Approved: true, Decision: coreapi.DecisionAllowAlways}}
	resp, err := mock.RequestApproval(context.Background(), Request{Kind: "exec_approval"})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, coreapi.DecisionAllowAlways, resp.Decision)
}
