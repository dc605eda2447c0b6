// Package approval implements the operator-facing side of the Policy &
// Approval Gate (§4.3): interactive terminal resolution of warn-level
// confirmations and approval-required exec approvals. It never decides
// policy itself — internal/policy does that — it only collects a human
// decision and hands it back as a typed Resolution.
package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"surf-core/internal/coreapi"
)

// Request describes one thing awaiting operator resolution: either a
// warn-level UI action confirmation, or a pending shell ExecApproval.
type Request struct {
	Kind        string // "warn" | "exec_approval"
	Description string
	Command     string
	Cwd         string
	Diff        string
}

// Resolution is the operator's decision on a Request.
type Resolution struct {
	Approved bool
	Decision coreapi.ExecDecision
	Message  string
}

// Approver is the Planner/Policy's view of approval resolution, small enough
// to pass as a capability record rather than a concrete dependency
// (§9 "break cyclic references with capability records").
type Approver interface {
	RequestApproval(ctx context.Context, req Request) (Resolution, error)
}

// InteractiveApprover prompts on the terminal, mirroring the teacher's
// diff-approval shell but resolving to the exec approval vocabulary
// (allow-once / allow-always / deny) instead of a generic approve/reject.
type InteractiveApprover struct {
	timeout      time.Duration
	autoApprove  bool
	colorEnabled bool
}

// NewInteractiveApprover builds an InteractiveApprover. autoApprove bypasses
// the prompt entirely (used by non-interactive CLI invocations and tests).
func NewInteractiveApprover(timeout time.Duration, autoApprove, colorEnabled bool) *InteractiveApprover {
	return &InteractiveApprover{timeout: timeout, autoApprove: autoApprove, colorEnabled: colorEnabled}
}

// RequestApproval asks for operator approval via the terminal, with a
// timeout that defaults to deny (§7: an error path must never hang the
// interactive loop indefinitely).
func (a *InteractiveApprover) RequestApproval(ctx context.Context, req Request) (Resolution, error) {
	if a.autoApprove {
		return Resolution{Approved: true, Decision: coreapi.DecisionAllowOnce, Message: "auto-approved"}, nil
	}

	a.display(req)

	respCh := make(chan Resolution, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := a.readChoice(req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case resp := <-respCh:
		return resp, nil
	case err := <-errCh:
		return Resolution{}, err
	case <-timeoutCtx.Done():
		fmt.Println()
		fmt.Println(a.colorize("Timeout - treated as not approved", color.FgRed))
		return Resolution{Approved: false, Decision: coreapi.DecisionDeny, Message: "approval timeout"}, nil
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

func (a *InteractiveApprover) display(req Request) {
	sep := strings.Repeat("=", 72)
	fmt.Println()
	fmt.Println(a.colorize(sep, color.FgCyan))
	switch req.Kind {
	case "exec_approval":
		fmt.Println(a.colorize("Shell command awaiting approval", color.FgYellow, color.Bold))
		fmt.Println(a.colorize("Command: "+req.Command, color.FgWhite))
		if req.Cwd != "" {
			fmt.Println(a.colorize("Cwd: "+req.Cwd, color.FgWhite))
		}
	default:
		fmt.Println(a.colorize("Action requires confirmation", color.FgYellow, color.Bold))
		fmt.Println(a.colorize(req.Description, color.FgWhite))
	}
	if req.Diff != "" {
		fmt.Println()
		fmt.Println(req.Diff)
	}
	fmt.Println(a.colorize(sep, color.FgCyan))
}

func (a *InteractiveApprover) readChoice(req Request) (Resolution, error) {
	var items []string
	if req.Kind == "exec_approval" {
		items = []string{"Allow once", "Allow always (adds to allowlist)", "Deny"}
	} else {
		items = []string{"Yes", "No"}
	}

	sel := promptui.Select{
		Label: "Choice",
		Items: items,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "\U0001F449 {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "Choice: {{ . | green }}",
		},
	}
	idx, _, err := sel.Run()
	if err != nil {
		// ^C or closed stdin: treat the same as a typed deny, not a hang.
		return Resolution{Approved: false, Decision: coreapi.DecisionDeny, Message: "denied: " + err.Error()}, nil
	}

	if req.Kind == "exec_approval" {
		switch idx {
		case 0:
			return Resolution{Approved: true, Decision: coreapi.DecisionAllowOnce, Message: "approved by operator"}, nil
		case 1:
			return Resolution{Approved: true, Decision: coreapi.DecisionAllowAlways, Message: "approved (allow-always) by operator"}, nil
		default:
			return Resolution{Approved: false, Decision: coreapi.DecisionDeny, Message: "denied by operator"}, nil
		}
	}
	if idx == 0 {
		return Resolution{Approved: true, Decision: coreapi.DecisionAllowOnce, Message: "approved by operator"}, nil
	}
	return Resolution{Approved: false, Decision: coreapi.DecisionDeny, Message: "denied by operator"}, nil
}

func (a *InteractiveApprover) colorize(text string, attrs ...color.Attribute) string {
	if !a.colorEnabled {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// NoOpApprover always approves with allow-once, for tests and non-interactive
// flows where the caller already gated interactivity elsewhere.
type NoOpApprover struct{}

func NewNoOpApprover() *NoOpApprover { return &NoOpApprover{} }

func (NoOpApprover) RequestApproval(ctx context.Context, req Request) (Resolution, error) {
	return Resolution{Approved: true, Decision: coreapi.DecisionAllowOnce, Message: "auto-approved (no-op)"}, nil
}
