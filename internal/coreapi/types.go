// Package coreapi defines the shared domain types every other package in
// this module operates on. It carries no behavior beyond small, pure value
// methods (fingerprints, hashes) — no I/O, no locking.
package coreapi

import "time"

// EventSource enumerates where an Event originated.
type EventSource string

const (
	SourceKeyboard   EventSource = "keyboard"
	SourceMouse      EventSource = "mouse"
	SourceFilesystem EventSource = "filesystem"
	SourceAppWatcher EventSource = "app_watcher"
	SourceAgent      EventSource = "agent"
)

// Priority is the event's P0 (most urgent) through P3 (least) classification.
type Priority int

const (
	P0 Priority = iota
	P1
	P2
	P3
)

// Resource identifies the entity an Event concerns, when applicable.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PrivacyAnnotations records what the privacy mask did to an Event, so the
// stored record is self-describing.
type PrivacyAnnotations struct {
	Dropped   bool     `json:"dropped,omitempty"`
	Hashed    []string `json:"hashed,omitempty"`
	Redacted  []string `json:"redacted,omitempty"`
}

// Event is the immutable, timestamped record every sensor produces (§3).
type Event struct {
	EventID      string              `json:"event_id"`
	TS           time.Time           `json:"ts"`
	Source       EventSource         `json:"source"`
	App          string              `json:"app,omitempty"`
	EventType    string              `json:"event_type"`
	Priority     Priority            `json:"priority"`
	Resource     *Resource           `json:"resource,omitempty"`
	Payload      map[string]any      `json:"payload,omitempty"`
	Privacy      *PrivacyAnnotations `json:"privacy,omitempty"`
	WindowTitle  string              `json:"window_title,omitempty"`
	BrowserURL   string              `json:"browser_url,omitempty"`
	PID          int                 `json:"pid,omitempty"`
}

// SessionSummary aggregates a Session's contents for quick display.
type SessionSummary struct {
	TopApp        string         `json:"top_app,omitempty"`
	EventCount    int            `json:"event_count"`
	KeyEventTypes []string       `json:"key_event_types,omitempty"`
	Resources     []Resource     `json:"resources,omitempty"`
}

// Session is a maximal contiguous run of events with inter-event idle no
// greater than 15 minutes (§3).
type Session struct {
	SessionID string         `json:"session_id"`
	StartTS   time.Time      `json:"start_ts"`
	EndTS     time.Time      `json:"end_ts"`
	Duration  time.Duration  `json:"duration"`
	Summary   SessionSummary `json:"summary"`
}

// PatternType enumerates the four detectors the Pattern Engine runs (§4.7).
type PatternType string

const (
	PatternAppSequence    PatternType = "AppSequence"
	PatternKeywordRepeat  PatternType = "KeywordRepeat"
	PatternFilePattern    PatternType = "FilePattern"
	PatternTimeBasedAction PatternType = "TimeBasedAction"
)

// DetectedPattern is a derived, possibly-transient regularity mined from
// recent Events (§3).
type DetectedPattern struct {
	PatternID       string      `json:"pattern_id"`
	Type            PatternType `json:"type"`
	Description     string      `json:"description"`
	Occurrences     int         `json:"occurrences"`
	SimilarityScore float64     `json:"similarity_score"`
	SampleEvents    []Event     `json:"sample_events"`
	DetectedAt      time.Time   `json:"detected_at"`
}

// ProposalStatus is the lifecycle state of an AutomationProposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalLater    ProposalStatus = "later"
	ProposalFailed   ProposalStatus = "failed"
)

// AutomationProposal is a recommended automation derived from a pattern or
// generated by an LLM (§3). Fingerprint uniqueness is enforced by storage.
type AutomationProposal struct {
	ID           string         `json:"id"`
	Status       ProposalStatus `json:"status"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	Trigger      string         `json:"trigger"`
	Actions      []Action       `json:"actions,omitempty"`
	N8NPrompt    string         `json:"n8n_prompt,omitempty"`
	Confidence   float64        `json:"confidence"`
	Evidence     []string       `json:"evidence,omitempty"`
	PatternID    string         `json:"pattern_id,omitempty"`
	WorkflowID   string         `json:"workflow_id,omitempty"`
	WorkflowJSON string         `json:"workflow_json,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Fingerprint returns the uniqueness key defined in the glossary:
// lower(title) + "::" + lower(trigger).
func (p AutomationProposal) Fingerprint() string {
	return fingerprint(p.Title, p.Trigger)
}

// PlanStepType enumerates a Plan's declarative step kinds (distinct from the
// runtime Action schema the Planner executes moment to moment).
type PlanStepType string

const (
	StepNavigate   PlanStepType = "Navigate"
	StepWait       PlanStepType = "Wait"
	StepFill       PlanStepType = "Fill"
	StepSelect     PlanStepType = "Select"
	StepClick      PlanStepType = "Click"
	StepApprove    PlanStepType = "Approve"
	StepExtract    PlanStepType = "Extract"
	StepScreenshot PlanStepType = "Screenshot"
)

// PlanStep is one declarative step of a Plan.
type PlanStep struct {
	ID          string         `json:"id"`
	Type        PlanStepType   `json:"type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// Plan is append-only once created; progress against it is tracked
// externally as (plan_id -> next_step_index) (§3).
type Plan struct {
	PlanID    string         `json:"plan_id"`
	Intent    string         `json:"intent"`
	Slots     map[string]any `json:"slots,omitempty"`
	Steps     []PlanStep     `json:"steps"`
	CreatedAt time.Time      `json:"created_at"`
}

// StepResultStatus is an AgentStep's outcome.
type StepResultStatus string

const (
	StepSuccess StepResultStatus = "success"
	StepFailed  StepResultStatus = "failed"
	StepBlocked StepResultStatus = "blocked"
	StepSkipped StepResultStatus = "skipped"
)

// AgentStep is one runtime entry in a goal run's history (§3).
type AgentStep struct {
	Index        int              `json:"index"`
	ActionType   string           `json:"action_type"`
	Inputs       map[string]any   `json:"inputs,omitempty"`
	ResultStatus StepResultStatus `json:"result_status"`
	Observations string           `json:"observations,omitempty"`
	At           time.Time        `json:"at"`
}

// ChatMessage is one persisted turn of the Planner's cross-run conversational
// context (§6 "chat history"), subject to SESSION_RESET_MODE pruning.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecApprovalStatus is the lifecycle of a pending shell-command approval.
type ExecApprovalStatus string

const (
	ExecApprovalPending  ExecApprovalStatus = "pending"
	ExecApprovalResolved ExecApprovalStatus = "resolved"
	ExecApprovalExpired  ExecApprovalStatus = "expired"
)

// ExecDecision is the operator's resolution of a pending ExecApproval.
type ExecDecision string

const (
	DecisionAllowOnce   ExecDecision = "allow-once"
	DecisionAllowAlways ExecDecision = "allow-always"
	DecisionDeny        ExecDecision = "deny"
)

// ExecApproval records a pending or resolved approval for one shell command
// invocation (§3, §4.3).
type ExecApproval struct {
	ID         string             `json:"id"`
	Command    string             `json:"command"`
	Cwd        string             `json:"cwd,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	Status     ExecApprovalStatus `json:"status"`
	Decision   ExecDecision       `json:"decision,omitempty"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
}

// Expired reports whether this approval's expiry has passed as of now.
func (a ExecApproval) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// ExecAllowlistEntry is a user-maintained shell pattern that bypasses
// per-execution approval (§3, §4.3). Pattern kinds: literal, "prefix*", or
// "re:"/"/.../" regex.
type ExecAllowlistEntry struct {
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern"`
	Cwd       string    `json:"cwd,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecResult is the persisted outcome of a shell Action execution.
type ExecResult struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Cwd        string    `json:"cwd,omitempty"`
	Status     string    `json:"status"` // success | failed
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// QualityScore is one bounded historical quality measurement.
type QualityScore struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"`
	Basis     string    `json:"basis"`
	CreatedAt time.Time `json:"created_at"`
}

// ReleaseBaseline is the single persisted baseline snapshot compared against
// on release gate checks.
type ReleaseBaseline struct {
	BaselineJSON string    `json:"baseline_json"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VerificationRun is one persisted Verifier invocation outcome.
type VerificationRun struct {
	ID        string    `json:"id"`
	Class     string    `json:"class"` // structural | ui_structural | visual
	Check     string    `json:"check"`
	Passed    bool      `json:"passed"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
