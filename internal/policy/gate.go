// Package policy implements the Policy & Approval Gate (§4.3): it classifies
// every intended Action into one of four safety levels, enforces the
// persisted Write-Lock, and runs shell commands through a hard-blocked
// pattern floor, the substitution/composite guard, and allowlist lookup, in
// that order, sending unmatched commands to a pending approval. There is no
// separate per-command classifier stage.
package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"

	"surf-core/internal/approval"
	"surf-core/internal/coreapi"
	coreerrors "surf-core/internal/errors"
	"surf-core/internal/logging"
	"surf-core/internal/storage"
)

// Level is one of the four safety classifications an Action is sorted into.
type Level string

const (
	LevelAuto             Level = "auto"
	LevelWarn             Level = "warn"
	LevelApprovalRequired Level = "approval_required"
	LevelBlocked          Level = "blocked"
)

// Decision is the outcome of a shell command check: whether it may run, and
// why.
type Decision struct {
	Allowed    bool
	Level      Level
	ApprovalID string // set when Level == approval_required and a pending record was created
	Reason     string
}

// mutatingActions are UI Actions the persisted Write-Lock gates (§4.3).
var mutatingActions = map[coreapi.ActionType]bool{
	coreapi.ActionClickRef:      true,
	coreapi.ActionClickVisual:   true,
	coreapi.ActionTypeText:      true,
	coreapi.ActionKey:           true,
	coreapi.ActionShortcut:      true,
	coreapi.ActionScroll:        true,
	coreapi.ActionTransfer:      true,
	coreapi.ActionPaste:         true,
	coreapi.ActionShell:         true,
	coreapi.ActionOpenURL:       true,
	coreapi.ActionOpenApp:       true,
	coreapi.ActionActivateApp:   true,
}

// blockedCommandPatterns are shell substrings that are rejected unconditionally
// regardless of allowlist state — a "blocked" floor beneath the allowlist.
var blockedCommandPatterns = []string{
	"rm -rf /", "mkfs", ":(){ :|:& };:", "dd if=/dev/zero", "> /dev/sda",
}

// Gate is the production Policy & Approval Gate.
type Gate struct {
	store    *storage.Store
	approver approval.Approver
	logger   logging.Logger

	allowSubstitution bool
	allowComposites   bool
	approvalTTL       time.Duration

	mu          sync.Mutex
	writeLocked bool

	matchCache *lru.Cache[string, bool]
}

// New builds a Gate. allowSubstitution/allowComposites mirror
// SHELL_ALLOW_SUBSTITUTION / SHELL_ALLOW_COMPOSITES; both default to
// disabled per §4.3.
func New(store *storage.Store, approver approval.Approver, allowSubstitution, allowComposites bool, logger logging.Logger) *Gate {
	cache, _ := lru.New[string, bool](512)
	return &Gate{
		store:             store,
		approver:          approver,
		logger:            logging.OrNop(logger),
		allowSubstitution: allowSubstitution,
		allowComposites:   allowComposites,
		approvalTTL:       15 * time.Minute,
		writeLocked:       true, // starts locked; released explicitly or implicitly for user goals (§4.3)
		matchCache:        cache,
	}
}

// Unlock releases the Write-Lock, explicitly (CLI `unlock`) or implicitly at
// the start of a user-initiated goal.
func (g *Gate) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writeLocked = false
}

// Lock re-engages the Write-Lock.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writeLocked = true
}

// IsLocked reports the current Write-Lock state.
func (g *Gate) IsLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writeLocked
}

// Classify assigns one of the four safety levels to a proposed Action
// (§4.3). Shell actions are further routed through CheckShell by the caller;
// Classify only determines the UI-level bucket.
func (g *Gate) Classify(ctx context.Context, action coreapi.Action) (Level, error) {
	if action.Type == coreapi.ActionShell {
		// Shell classification is delegated to CheckShell, which consults
		// the allowlist; Classify reports approval_required as the default
		// floor so callers always route shell through CheckShell first.
		return LevelApprovalRequired, nil
	}

	if !mutatingActions[action.Type] {
		return LevelAuto, nil
	}

	if g.IsLocked() {
		return LevelWarn, nil
	}
	return LevelAuto, nil
}

// CheckShell runs the shell gate from §4.3: hard-blocked patterns first, then
// the substitution / composite guard, then allowlist lookup; there is no
// per-command classifier stage after the allowlist. It returns a Decision;
// when no allowlist entry matches, it creates a pending ExecApproval and, if
// an Approver is wired, blocks until the Approver resolves it. With a nil
// Approver it returns approval_required with the pending ApprovalID without
// blocking.
func (g *Gate) CheckShell(ctx context.Context, cmd, cwd string) (Decision, error) {
	if isHardBlocked(cmd) {
		return Decision{Allowed: false, Level: LevelBlocked, Reason: "command matches a hard-blocked pattern"}, nil
	}

	if !g.allowSubstitution && containsSubstitution(cmd) {
		return Decision{Allowed: false, Level: LevelBlocked, Reason: "command substitution is disabled (SHELL_ALLOW_SUBSTITUTION=false)"}, nil
	}
	if !g.allowComposites && containsComposite(cmd) {
		return Decision{Allowed: false, Level: LevelBlocked, Reason: "composite commands are disabled (SHELL_ALLOW_COMPOSITES=false)"}, nil
	}

	matched, err := g.allowlistMatch(ctx, cmd, cwd)
	if err != nil {
		return Decision{}, fmt.Errorf("allowlist lookup: %w", err)
	}
	if matched {
		return Decision{Allowed: true, Level: LevelAuto, Reason: "matched allowlist"}, nil
	}

	return g.resolveApproval(ctx, cmd, cwd)
}

// resolveApproval creates a pending ExecApproval and, if an Approver is
// wired, blocks for an operator decision; "allow-always" additionally
// inserts an allowlist entry so future identical invocations skip the
// prompt.
func (g *Gate) resolveApproval(ctx context.Context, cmd, cwd string) (Decision, error) {
	now := time.Now()
	a := coreapi.ExecApproval{
		ID:        uuid.NewString(),
		Command:   cmd,
		Cwd:       cwd,
		CreatedAt: now,
		ExpiresAt: now.Add(g.approvalTTL),
		Status:    coreapi.ExecApprovalPending,
	}
	if err := g.store.InsertExecApproval(ctx, a); err != nil {
		return Decision{}, fmt.Errorf("create pending approval: %w", err)
	}

	if g.approver == nil {
		return Decision{Allowed: false, Level: LevelApprovalRequired, ApprovalID: a.ID, Reason: "approval required; no interactive approver wired"}, nil
	}

	res, err := g.approver.RequestApproval(ctx, approval.Request{Kind: "exec_approval", Command: cmd, Cwd: cwd})
	if err != nil {
		return Decision{}, fmt.Errorf("request operator approval: %w", err)
	}
	return g.ApplyDecision(ctx, a.ID, res.Decision)
}

// ApplyDecision resolves a previously-created pending approval with an
// operator decision from the HTTP API or CLI `approve`/`reject` path.
func (g *Gate) ApplyDecision(ctx context.Context, approvalID string, decision coreapi.ExecDecision) (Decision, error) {
	a, found, err := g.store.GetExecApproval(ctx, approvalID)
	if err != nil {
		return Decision{}, fmt.Errorf("load approval: %w", err)
	}
	if !found {
		return Decision{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, fmt.Errorf("approval %s not found", approvalID), "")
	}
	// §8 boundary behavior: an approval that expires between creation and
	// execution is treated as not approved.
	if a.Status == coreapi.ExecApprovalExpired || a.Expired(time.Now()) {
		if a.Status != coreapi.ExecApprovalExpired {
			_ = g.store.ExpireExecApproval(ctx, approvalID)
		}
		return Decision{Allowed: false, Level: LevelBlocked, ApprovalID: approvalID, Reason: "approval expired"}, nil
	}

	if err := g.store.ResolveExecApproval(ctx, approvalID, decision, time.Now()); err != nil {
		return Decision{}, fmt.Errorf("resolve approval: %w", err)
	}

	switch decision {
	case coreapi.DecisionAllowAlways:
		entry := coreapi.ExecAllowlistEntry{ID: uuid.NewString(), Pattern: a.Command, Cwd: a.Cwd, CreatedAt: time.Now()}
		if err := g.store.InsertAllowlistEntry(ctx, entry); err != nil {
			return Decision{}, fmt.Errorf("persist allow-always entry: %w", err)
		}
		g.matchCache.Purge()
		return Decision{Allowed: true, Level: LevelAuto, ApprovalID: approvalID, Reason: "allow-always"}, nil
	case coreapi.DecisionAllowOnce:
		return Decision{Allowed: true, Level: LevelApprovalRequired, ApprovalID: approvalID, Reason: "allow-once"}, nil
	default:
		return Decision{Allowed: false, Level: LevelBlocked, ApprovalID: approvalID, Reason: "denied"}, nil
	}
}

// allowlistMatch implements §3/§4.3's match order: exact literal, then
// "prefix*" glob-suffix, then "re:"/"/.../" regex, and the invariant that a
// cwd-scoped entry only matches when cwd is equal.
func (g *Gate) allowlistMatch(ctx context.Context, cmd, cwd string) (bool, error) {
	cacheKey := cmd + "\x00" + cwd
	if v, ok := g.matchCache.Get(cacheKey); ok {
		return v, nil
	}

	entries, err := g.store.ListAllowlist(ctx)
	if err != nil {
		return false, err
	}
	matched := false
	for _, e := range entries {
		if e.Cwd != "" && e.Cwd != cwd {
			continue
		}
		if matchPattern(e.Pattern, cmd) {
			matched = true
			break
		}
	}
	g.matchCache.Add(cacheKey, matched)
	return matched, nil
}

// matchPattern implements the allowlist's three pattern kinds: exact,
// "prefix*", and "re:"/"/.../" regex.
func matchPattern(pattern, cmd string) bool {
	switch {
	case pattern == cmd:
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(cmd, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "re:"):
		return regexMatch(strings.TrimPrefix(pattern, "re:"), cmd)
	case strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/"):
		return regexMatch(strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/"), cmd)
	default:
		return false
	}
}

func regexMatch(expr, cmd string) bool {
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(cmd)
}

func isHardBlocked(cmd string) bool {
	lower := strings.ToLower(cmd)
	for _, p := range blockedCommandPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// containsSubstitution detects $(...) / `...` command substitution.
func containsSubstitution(cmd string) bool {
	return strings.Contains(cmd, "$(") || strings.Contains(cmd, "`")
}

// containsComposite detects shell composition via &&, ||, ;, or |.
func containsComposite(cmd string) bool {
	return strings.Contains(cmd, "&&") || strings.Contains(cmd, "||") ||
		strings.Contains(cmd, ";") || strings.Contains(cmd, "|")
}
