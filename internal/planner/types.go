package planner

import (
	"time"

	"surf-core/internal/coreapi"
)

// RunStatus is the terminal status of a goal run (§6 execute response).
type RunStatus string

const (
	StatusCompleted        RunStatus = "completed"
	StatusManualRequired   RunStatus = "manual_required"
	StatusApprovalRequired RunStatus = "approval_required"
	StatusBlocked          RunStatus = "blocked"
	StatusError            RunStatus = "error"
	StatusTimeout          RunStatus = "timeout"
	StatusCancelled        RunStatus = "cancelled"
)

// RunOptions configures one Planner.Run invocation.
type RunOptions struct {
	MaxSteps     int // default 25
	MaxReplans   int // default 1, EXECUTOR_MAX_REPLANS
	ResumeFrom   int // step_index to resume at, after an approval/manual gate
	SessionID    string
}

// ApprovalRef is returned when a run halts on a warn/approval-required
// action, so the caller can resolve it and resume from ResumeFrom.
type ApprovalRef struct {
	ApprovalID string
	Reason     string
}

// RunResult is the Planner's report for one goal run (§6 execute response).
type RunResult struct {
	Status      RunStatus
	Logs        []string
	Approval    *ApprovalRef
	ManualSteps []string
	ResumeFrom  int
	ReplyText   string
	PlanID      string
}

// state is the Planner's per-run state tuple (§4.5).
type state struct {
	goal                string
	stepIndex           int
	history             []string
	consecutiveFailures int
	planAttempts        map[string]int    // plan_key -> attempts
	lastActionByPlan    map[string]string // plan_key -> last action key
	lastTwoActionKeys   []string
	snapshotStreak      int
	lastSnapshotAt      time.Time
	pendingClick        *coreapi.Action
	resumeCheckpoint    string
	lastTree            *coreapi.UITree
	replans             int
}

func newState(goal string, resumeFrom int) *state {
	return &state{
		goal:             goal,
		stepIndex:        resumeFrom,
		planAttempts:     map[string]int{},
		lastActionByPlan: map[string]string{},
	}
}

func (s *state) pushHistory(line string) {
	s.history = append(s.history, line)
}
