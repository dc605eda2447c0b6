// Package planner implements the Planner / Step Loop (§4.5): the central
// state machine that drives a goal to completion by repeatedly observing the
// screen, asking a plan LLM for one next action, normalizing and
// policy-checking it, and executing it. The Planner holds a Verifier, but the
// step loop does not call it; the verify set of a rewritten files.txt listing
// step is carried only in that Action's Description.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"surf-core/internal/actionexec"
	"surf-core/internal/approval"
	"surf-core/internal/coreapi"
	coreerrors "surf-core/internal/errors"
	"surf-core/internal/logging"
	"surf-core/internal/policy"
	"surf-core/internal/sensor"
	"surf-core/internal/storage"
	"surf-core/internal/tracing"
	"surf-core/internal/verifier"
)

const defaultMaxSteps = 25

// Planner composes the other five components into the step loop. The
// sensor, executor, plan LLM and approver are held as interfaces; the policy
// gate, verifier and store are held as concrete types.
type Planner struct {
	sensor   sensor.Sensor
	executor actionexec.Executor
	gate     *policy.Gate
	verifier *verifier.Verifier
	llm      PlanLLM
	approver approval.Approver
	store    *storage.Store
	logger   logging.Logger

	contextPruneMaxMessages int
	executorMaxRetries      int

	sessionResetMode        string
	sessionResetAtHour      int
	sessionResetIdleMinutes int
}

// New builds a Planner from its five collaborators plus the store it
// persists AgentSteps to. Session reset defaults to "off"; call
// SetSessionReset to enable chat-history pruning (§6 SESSION_RESET_MODE).
func New(s sensor.Sensor, exec actionexec.Executor, gate *policy.Gate, v *verifier.Verifier, llm PlanLLM, approver approval.Approver, store *storage.Store, contextPruneMaxMessages int, logger logging.Logger) *Planner {
	if contextPruneMaxMessages <= 0 {
		contextPruneMaxMessages = 40
	}
	return &Planner{
		sensor: s, executor: exec, gate: gate, verifier: v, llm: llm,
		approver: approver, store: store,
		contextPruneMaxMessages: contextPruneMaxMessages,
		executorMaxRetries:      coreerrors.DefaultRetryConfig().MaxAttempts,
		logger:                  logging.OrNop(logger),
		sessionResetMode:        SessionResetOff,
	}
}

// SetSessionReset configures the reset boundary applied to a session's
// persisted chat history before it is handed to the plan LLM (§6
// SESSION_RESET_MODE, SESSION_RESET_AT_HOUR, SESSION_RESET_IDLE_MINUTES).
func (p *Planner) SetSessionReset(mode string, atHour, idleMinutes int) {
	p.sessionResetMode = mode
	p.sessionResetAtHour = atHour
	p.sessionResetIdleMinutes = idleMinutes
}

// SetExecutorMaxRetries configures the per-Action retry ceiling applied
// before a failure counts toward replan escalation (§7 EXECUTOR_MAX_RETRIES).
func (p *Planner) SetExecutorMaxRetries(maxRetries int) {
	if maxRetries > 0 {
		p.executorMaxRetries = maxRetries
	}
}

// Run drives one goal to a terminal status, or to a halted
// approval_required/manual_required status with enough state (ResumeFrom)
// for the caller to resume after resolving the gate.
func (p *Planner) Run(ctx context.Context, goal string, opts RunOptions) (*RunResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.ScopePlanner, tracing.SpanPlannerRun, opts.SessionID)
	result, err := p.run(ctx, goal, opts)
	tracing.End(span, err)
	return result, err
}

func (p *Planner) run(ctx context.Context, goal string, opts RunOptions) (*RunResult, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	maxReplans := opts.MaxReplans
	if maxReplans <= 0 {
		maxReplans = 1
	}

	st := newState(goal, opts.ResumeFrom)
	result := &RunResult{}

	p.seedChatHistory(ctx, st, opts.SessionID)
	p.recordChatMessage(ctx, opts.SessionID, "user", goal)

	luckyForced := false
	luckyOnly := preferLuckyOnly(goal)

	for st.stepIndex < maxSteps {
		select {
		case <-ctx.Done():
			result.Status = StatusCancelled
			return result, ctx.Err()
		default:
		}

		// 1. Observe
		raster, err := p.sensor.CaptureRaster(ctx)
		if err != nil {
			if coreerrors.IsFatalForGoal(err) {
				result.Status = StatusError
				result.Logs = append(result.Logs, "FAILED: "+err.Error())
				return result, err
			}
			st.consecutiveFailures++
			st.pushHistory("FAILED: capture_raster: " + err.Error())
			continue
		}

		tree, err := p.sensor.SnapshotUI(ctx, nil)
		if err == nil {
			st.lastTree = &tree
			if ref, found := findBlockingDialog(tree); found {
				if _, err := p.executor.Execute(ctx, coreapi.Action{Type: coreapi.ActionClickRef, Ref: ref}); err == nil {
					st.pushHistory("dismissed blocking dialog")
					continue // dismiss without consuming a step
				}
			}
		}

		planKey := coreapi.PlanKey(goal, raster.Bytes)

		// 2. Hint
		var forcedAction *coreapi.Action
		if luckyOnly && !luckyForced {
			if u, ok := luckySearchURL(goal); ok {
				a := coreapi.Action{Type: coreapi.ActionOpenURL, URL: u}
				forcedAction = &a
				luckyForced = true
			}
		}
		if forcedAction == nil && len(st.history) > 0 {
			last := st.history[len(st.history)-1]
			if isRedirectAlert(last) {
				if target, ok := extractRedirectTarget(last); ok {
					a := coreapi.Action{Type: coreapi.ActionOpenURL, URL: target}
					forcedAction = &a
				}
			}
		}
		if forcedAction == nil && st.pendingClick != nil {
			// resolve a pending click against the snapshot just taken
			if st.lastTree != nil {
				if n, found := st.lastTree.FindByRef(st.pendingClick.Ref); found {
					a := coreapi.Action{Type: coreapi.ActionClickRef, Ref: n.StableRefID}
					forcedAction = &a
				}
			}
			st.pendingClick = nil
		}

		var action coreapi.Action
		var hint string
		if st.consecutiveFailures > 0 {
			hint = fmt.Sprintf("RETRY_CONTEXT: attempt=%d plan_key=%s last_action=%s last_error=%s",
				st.planAttempts[planKey]+1, planKey, st.lastActionByPlan[planKey], lastFailure(st.history))
		}

		if forcedAction != nil {
			action = *forcedAction
		} else {
			// 3. Plan
			pruned := pruneHistory(st.history, p.contextPruneMaxMessages, 0)
			raw, err := p.llm.NextAction(ctx, PlanRequest{Goal: goal, History: pruned, Hint: hint})
			if err != nil {
				st.consecutiveFailures++
				st.pushHistory("FAILED: plan call: " + err.Error())
				continue
			}

			// 4. Normalize
			action, err = normalizeRaw(raw)
			if err != nil {
				action = coreapi.Action{Type: coreapi.ActionReport, Text: "could not parse plan output"}
			}
			if cmd, verifies, matched := rewriteFilesTxtListing(action.Cmd); matched {
				action.Cmd = cmd
				action.Description = strings.Join(verifies, ",")
			}
		}

		// 5. Loop-break
		action = p.breakLoops(st, planKey, action)

		if action.Type == coreapi.ActionSnapshot {
			st.snapshotStreak++
		} else {
			st.snapshotStreak = 0
		}

		// terminal actions short-circuit the remaining stages
		if action.IsTerminal() {
			return p.finishTerminal(ctx, st, action, result, opts.SessionID)
		}

		// 6. Check
		halt, err := p.checkPolicy(ctx, st, action, result)
		if halt {
			return result, err
		}
		if err != nil {
			// blocked: record and continue without executing
			st.pushHistory("BLOCKED: " + err.Error())
			st.stepIndex++
			continue
		}

		// 7. Act
		actRes, actErr := p.executeWithRetry(ctx, action)

		// 8. Update
		st.planAttempts[planKey]++
		st.lastActionByPlan[planKey] = action.ActionKey()
		st.lastTwoActionKeys = append(st.lastTwoActionKeys, action.ActionKey())
		if len(st.lastTwoActionKeys) > 2 {
			st.lastTwoActionKeys = st.lastTwoActionKeys[len(st.lastTwoActionKeys)-2:]
		}

		if actErr != nil {
			st.consecutiveFailures++
			st.pushHistory("FAILED: " + describeAction(action) + ": " + actErr.Error())

			if st.consecutiveFailures >= 2 && st.replans < maxReplans {
				st.replans++
				switch strategyFor(coreerrors.KindOf(actErr)) {
				case strategyStopImmediately:
					result.Status = StatusError
					result.Logs = st.history
					return result, actErr
				case strategySnapshotFirst:
					if _, err := p.sensor.SnapshotUI(ctx, nil); err == nil {
						st.pushHistory("replanned: snapshot first")
					}
				case strategyWaitAndRetry:
					select {
					case <-time.After(2 * time.Second):
					case <-ctx.Done():
					}
					st.pushHistory("replanned: wait and retry")
				default:
					st.pushHistory("replanned: asking LLM to regenerate plan")
				}
			}
		} else {
			st.consecutiveFailures = 0
			if action.Type == coreapi.ActionRead {
				st.pushHistory("READ_NUMBER: " + actRes.Output)
			} else {
				st.pushHistory(describeAction(action) + ": ok")
			}
		}

		p.recordStep(ctx, st.stepIndex, action, actErr)

		// 9. Combat mode
		if st.consecutiveFailures >= 2 {
			_, _ = p.executor.Execute(ctx, coreapi.Action{Type: coreapi.ActionKey, Key: "escape"})
			_, _ = p.executor.Execute(ctx, coreapi.Action{Type: coreapi.ActionKey, Key: "enter"})
			st.consecutiveFailures = 1
		}

		// 10. Settle
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
		}

		st.stepIndex++
	}

	result.Status = StatusTimeout
	result.Logs = st.history
	return result, nil
}

// breakLoops applies §4.5 step 5: repeated action_key collapse, snapshot
// streak, and per-plan_key repeat forcing.
func (p *Planner) breakLoops(st *state, planKey string, action coreapi.Action) coreapi.Action {
	key := action.ActionKey()

	if len(st.lastTwoActionKeys) == 2 && st.lastTwoActionKeys[0] == key && st.lastTwoActionKeys[1] == key {
		return coreapi.Action{Type: coreapi.ActionKey, Key: "escape"}
	}

	if st.snapshotStreak >= 2 && action.Type == coreapi.ActionSnapshot {
		return coreapi.Action{Type: coreapi.ActionKey, Key: "escape"}
	}

	if st.lastActionByPlan[planKey] == key && st.planAttempts[planKey] >= 2 {
		return coreapi.Action{Type: coreapi.ActionKey, Key: "escape"}
	}

	if action.Type == coreapi.ActionClickVisual && (st.lastTree == nil || st.snapshotStreak == 0) {
		pending := action
		st.pendingClick = &pending
		return coreapi.Action{Type: coreapi.ActionSnapshot}
	}

	return action
}

// checkPolicy runs §4.5 step 6. halt=true means Run should return
// immediately with result already populated (approval/manual gate or a
// fatal error); a non-nil error with halt=false means the action was
// blocked and the loop should record-and-continue.
func (p *Planner) checkPolicy(ctx context.Context, st *state, action coreapi.Action, result *RunResult) (halt bool, err error) {
	if action.Type == coreapi.ActionShell {
		dec, err := p.gate.CheckShell(ctx, action.Cmd, action.Cwd)
		if err != nil {
			return true, err
		}
		if dec.Allowed {
			return false, nil
		}
		if dec.Level == policy.LevelBlocked {
			return false, fmt.Errorf("%s", dec.Reason)
		}
		result.Status = StatusApprovalRequired
		result.Approval = &ApprovalRef{ApprovalID: dec.ApprovalID, Reason: dec.Reason}
		result.ResumeFrom = st.stepIndex
		result.Logs = st.history
		return true, nil
	}

	level, err := p.gate.Classify(ctx, action)
	if err != nil {
		return true, err
	}
	switch level {
	case policy.LevelAuto:
		return false, nil
	case policy.LevelBlocked:
		return false, fmt.Errorf("action blocked by policy")
	case policy.LevelWarn, policy.LevelApprovalRequired:
		if p.approver != nil {
			res, err := p.approver.RequestApproval(ctx, approval.Request{
				Kind: "warn", Description: describeAction(action),
			})
			if err == nil && res.Approved {
				return false, nil
			}
		}
		result.Status = StatusManualRequired
		result.Approval = &ApprovalRef{Reason: "write-lock engaged; resolve and resume"}
		result.ResumeFrom = st.stepIndex
		result.Logs = st.history
		return true, nil
	default:
		return false, nil
	}
}

// executeWithRetry runs action through the Action Executor, retrying up to
// executorMaxRetries times with linear backoff when the failure's taxonomy
// Kind is retryable (timeout/network_error, §7). This is the per-Action
// retry stage that runs before a failure ever reaches replan escalation:
// only once it is exhausted does the step loop's consecutiveFailures
// counter advance toward the >=2 threshold that triggers strategyFor.
func (p *Planner) executeWithRetry(ctx context.Context, action coreapi.Action) (actionexec.ActionResult, error) {
	cfg := coreerrors.DefaultRetryConfig()
	cfg.MaxAttempts = p.executorMaxRetries
	return coreerrors.RetryWithResultAndLog(ctx, cfg, func(ctx context.Context) (actionexec.ActionResult, error) {
		return p.executor.Execute(ctx, action)
	}, p.logger)
}

// finishTerminal handles done/fail/reply (§4.5's terminal actions).
func (p *Planner) finishTerminal(ctx context.Context, st *state, action coreapi.Action, result *RunResult, sessionID string) (*RunResult, error) {
	switch action.Type {
	case coreapi.ActionDone:
		st.pushHistory("done")
		result.Status = StatusCompleted
	case coreapi.ActionFail:
		st.pushHistory("FAILED: " + action.Reason)
		result.Status = StatusError
	case coreapi.ActionReply:
		st.pushHistory("reply: " + action.Text)
		result.Status = StatusCompleted
		result.ReplyText = action.Text
	}
	result.Logs = st.history
	p.recordStep(ctx, st.stepIndex, action, nil)
	p.recordChatMessage(ctx, sessionID, "assistant", st.history[len(st.history)-1])
	return result, nil
}

// seedChatHistory loads sessionID's persisted chat history, applies the
// configured reset boundary, and prepends whatever survives to st.history so
// the plan LLM sees cross-run conversational context up to that point (§6
// "chat history", scenario 6).
func (p *Planner) seedChatHistory(ctx context.Context, st *state, sessionID string) {
	if p.store == nil || sessionID == "" || p.sessionResetMode == SessionResetOff {
		return
	}
	messages, err := p.store.ChatHistory(ctx, sessionID)
	if err != nil || len(messages) == 0 {
		return
	}
	cutoff := SessionResetCutoff(time.Now(), p.sessionResetMode, p.sessionResetAtHour, p.sessionResetIdleMinutes, messages)
	kept := FilterChatHistory(messages, cutoff)
	seed := make([]string, 0, len(kept))
	for _, m := range kept {
		seed = append(seed, m.Role+": "+m.Content)
	}
	st.history = append(seed, st.history...)
}

// recordChatMessage persists one chat turn, best-effort: a storage failure
// here never aborts the goal run, matching §7's "pipeline ingest errors are
// logged and dropped" posture for ambient persistence.
func (p *Planner) recordChatMessage(ctx context.Context, sessionID, role, content string) {
	if p.store == nil || sessionID == "" || content == "" {
		return
	}
	msg := coreapi.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := p.store.InsertChatMessage(ctx, msg); err != nil {
		p.logger.Warn("planner: record chat message: %v", err)
	}
}

func (p *Planner) recordStep(ctx context.Context, index int, action coreapi.Action, actErr error) {
	if p.store == nil {
		return
	}
	status := coreapi.StepSuccess
	obs := ""
	if actErr != nil {
		status = coreapi.StepFailed
		obs = actErr.Error()
	}
	step := coreapi.AgentStep{
		Index: index, ActionType: string(action.Type), ResultStatus: status,
		Observations: obs, At: time.Now(),
	}
	if err := p.store.InsertAgentStep(ctx, step); err != nil {
		p.logger.Warn("planner: failed to persist agent step: %v", err)
	}
}

func describeAction(a coreapi.Action) string {
	switch a.Type {
	case coreapi.ActionClickRef:
		return "Clicked ref " + a.Ref
	case coreapi.ActionClickVisual:
		return "Clicked '" + a.Description + "'"
	case coreapi.ActionTypeText:
		return "Typed text"
	case coreapi.ActionOpenURL:
		return "Opened " + a.URL
	case coreapi.ActionOpenApp:
		return "Opened app " + a.App
	default:
		return string(a.Type)
	}
}

func lastFailure(history []string) string {
	for i := len(history) - 1; i >= 0; i-- {
		if strings.HasPrefix(history[i], "FAILED: ") {
			return strings.TrimPrefix(history[i], "FAILED: ")
		}
	}
	return ""
}
