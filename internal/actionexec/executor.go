// Package actionexec is the Action Executor (§4.2): it performs exactly one
// typed Action and reports success or failure. All Actions run on a serial
// per-resource queue ("shell" lane, "ui" lane) so concurrent plans never
// interleave keystrokes or shell invocations, and every Action has a hard
// timeout that maps a deadline exceeded into the `timeout` taxonomy Kind,
// distinct from `execution_error` (§4.2, §7).
package actionexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"surf-core/internal/coreapi"
	coreerrors "surf-core/internal/errors"
	"surf-core/internal/logging"
	"surf-core/internal/sensor"
	"surf-core/internal/storage"
)

// ActionResult is the Action Executor's report for one executed Action.
type ActionResult struct {
	Success      bool
	Output       string
	ResolvedRef  string // set by click_visual once resolved to a concrete ref
	ExecResultID string // set for shell actions, for verifier cross-reference
}

// VisionLocator resolves a natural-language visual description to a
// clickable UI ref against the most recent snapshot, used by click_visual.
// Production wiring plugs in a vision LLM call; it is a capability record
// per §9 so actionexec never imports a concrete LLM client.
type VisionLocator interface {
	Locate(ctx context.Context, tree coreapi.UITree, description string) (ref string, err error)
}

// Executor is the Action Executor's public contract (§4.2 / SPEC_FULL).
type Executor interface {
	Execute(ctx context.Context, action coreapi.Action) (ActionResult, error)
}

// NoLocator is used when no vision model is configured; click_visual always
// fails with a clear remediation message instead of panicking on a nil
// capability record (§7: every user-visible error has one concrete next step).
type NoLocator struct{}

func (NoLocator) Locate(ctx context.Context, tree coreapi.UITree, description string) (string, error) {
	return "", fmt.Errorf("click_visual requires a configured vision model (set ANTHROPIC_API_KEY)")
}

// lane serializes every Action routed through it onto one goroutine-safe
// queue, matching §5's "ui"/"shell" lane ordering guarantee.
type lane struct{ mu chan struct{} }

func newLane() *lane {
	l := &lane{mu: make(chan struct{}, 1)}
	l.mu <- struct{}{}
	return l
}

func (l *lane) acquire(ctx context.Context) error {
	select {
	case <-l.mu:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lane) release() { l.mu <- struct{}{} }

// defaultTimeouts mirrors §4.2's table: open_app allows up to 3s for focus,
// shell and transfer get more headroom, everything else gets a conservative
// floor.
var defaultTimeouts = map[coreapi.ActionType]time.Duration{
	coreapi.ActionOpenApp:     3 * time.Second,
	coreapi.ActionActivateApp: 3 * time.Second,
	coreapi.ActionShell:       30 * time.Second,
	coreapi.ActionTransfer:    10 * time.Second,
	coreapi.ActionSnapshot:    5 * time.Second,
	coreapi.ActionClickVisual: 8 * time.Second,
}

const fallbackTimeout = 5 * time.Second

func timeoutFor(a coreapi.Action) time.Duration {
	if a.Type == coreapi.ActionWait {
		return time.Duration(a.Seconds+2) * time.Second
	}
	if t, ok := defaultTimeouts[a.Type]; ok {
		return t
	}
	return fallbackTimeout
}

// DesktopExecutor is the production Executor: it shells out to platform CLIs
// for each Action variant, mirroring
// original_source/core/src/shell_actions.rs and
// original_source/core/src/clipboard.rs.
type DesktopExecutor struct {
	sensor   sensor.Sensor
	locator  VisionLocator
	store    *storage.Store
	logger   logging.Logger
	uiLane   *lane
	shellLane *lane

	maxOpenAppRetries int
}

// New builds a DesktopExecutor.
func New(s sensor.Sensor, locator VisionLocator, store *storage.Store, logger logging.Logger) *DesktopExecutor {
	return &DesktopExecutor{
		sensor:            s,
		locator:           locator,
		store:             store,
		logger:            logging.OrNop(logger),
		uiLane:            newLane(),
		shellLane:         newLane(),
		maxOpenAppRetries: 3,
	}
}

var _ Executor = (*DesktopExecutor)(nil)

// Execute runs one Action to completion, serializing on the appropriate
// resource lane and enforcing the Action's timeout.
func (e *DesktopExecutor) Execute(ctx context.Context, action coreapi.Action) (ActionResult, error) {
	l := e.uiLane
	if action.Type == coreapi.ActionShell {
		l = e.shellLane
	}
	if err := l.acquire(ctx); err != nil {
		return ActionResult{}, err
	}
	defer l.release()

	timeout := timeoutFor(action)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := e.dispatch(runCtx, action)
	if err != nil && runCtx.Err() != nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindTimeout, err, fmt.Sprintf("%s exceeded its %s timeout", action.Type, timeout))
	}
	return res, err
}

func (e *DesktopExecutor) dispatch(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	switch a.Type {
	case coreapi.ActionOpenURL:
		return e.openURL(ctx, a)
	case coreapi.ActionOpenApp:
		return e.openApp(ctx, a)
	case coreapi.ActionActivateApp:
		return e.activateApp(ctx, a)
	case coreapi.ActionClickRef:
		return e.clickRef(ctx, a)
	case coreapi.ActionClickVisual:
		return e.clickVisual(ctx, a)
	case coreapi.ActionTypeText:
		return e.typeText(ctx, a)
	case coreapi.ActionKey:
		return e.key(ctx, a)
	case coreapi.ActionShortcut:
		return e.shortcut(ctx, a)
	case coreapi.ActionScroll:
		return e.scroll(ctx, a)
	case coreapi.ActionWait:
		return e.wait(ctx, a)
	case coreapi.ActionShell:
		return e.shell(ctx, a)
	case coreapi.ActionCopy:
		return e.copy(ctx, a)
	case coreapi.ActionPaste:
		return e.paste(ctx, a)
	case coreapi.ActionReadClipboard:
		return e.readClipboard(ctx)
	case coreapi.ActionTransfer:
		return e.transfer(ctx, a)
	case coreapi.ActionSnapshot:
		return e.snapshot(ctx)
	case coreapi.ActionRead:
		// Visual-question reads are resolved by the Verifier's visual path;
		// the Executor itself just acknowledges the action was issued —
		// the Planner records the answer via the Verifier call it makes
		// immediately after.
		return ActionResult{Success: true, Output: ""}, nil
	case coreapi.ActionReport, coreapi.ActionReply, coreapi.ActionDone, coreapi.ActionFail:
		return ActionResult{Success: true}, nil
	default:
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindSchemaError, fmt.Errorf("unsupported action type %q", a.Type), "")
	}
}

func (e *DesktopExecutor) openURL(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, fmt.Errorf("malformed url %q", a.URL), "provide an http(s) URL")
	}
	if err := e.run(ctx, "open", a.URL); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) openApp(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxOpenAppRetries; attempt++ {
		if err := e.run(ctx, "open", "-a", a.App); err == nil {
			return ActionResult{Success: true}, nil
		} else {
			lastErr = err
		}
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
			return ActionResult{}, ctx.Err()
		}
	}
	return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, lastErr, fmt.Sprintf("app %q may not be installed", a.App))
}

func (e *DesktopExecutor) activateApp(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	app := a.App
	if app == "" || app == "frontmost" {
		return ActionResult{Success: true}, nil
	}
	script := fmt.Sprintf(`tell application %q to activate`, app)
	if err := e.run(ctx, "osascript", "-e", script); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) clickRef(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	if err := e.run(ctx, "peekaboo", "click", "--ref", a.Ref, fmt.Sprintf("--double=%v", a.Double)); err != nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindElementMissing, err, "take a fresh snapshot; the ref may be stale")
	}
	return ActionResult{Success: true, ResolvedRef: a.Ref}, nil
}

func (e *DesktopExecutor) clickVisual(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	if e.locator == nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, fmt.Errorf("no vision locator configured"), "")
	}
	tree, err := e.sensor.SnapshotUI(ctx, nil)
	if err != nil {
		return ActionResult{}, err
	}
	ref, err := e.locator.Locate(ctx, tree, a.Description)
	if err != nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindElementMissing, err, "no unique match for the visual description; try snapshotting first")
	}
	return e.clickRef(ctx, coreapi.Action{Type: coreapi.ActionClickRef, Ref: ref, Double: a.Double})
}

func (e *DesktopExecutor) typeText(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	script := fmt.Sprintf(`tell application "System Events" to keystroke %s`, quoteAppleScript(a.Text))
	if err := e.run(ctx, "osascript", "-e", script); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) key(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	return e.shortcut(ctx, coreapi.Action{Type: coreapi.ActionShortcut, Key: a.Key, Mods: a.Mods})
}

func (e *DesktopExecutor) shortcut(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	code, ok := keyCodes[strings.ToLower(a.Key)]
	if !ok {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindSchemaError, fmt.Errorf("unsupported key %q", a.Key), "")
	}
	modifiers := appleScriptModifiers(a.Mods)
	var script string
	if modifiers == "" {
		script = fmt.Sprintf(`tell application "System Events" to key code %d`, code)
	} else {
		script = fmt.Sprintf(`tell application "System Events" to key code %d using {%s}`, code, modifiers)
	}
	if err := e.run(ctx, "osascript", "-e", script); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) scroll(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	key := "page down"
	if a.Dir == "up" {
		key = "page up"
	}
	code := map[string]int{"page up": 116, "page down": 121}[key]
	script := fmt.Sprintf(`tell application "System Events" to key code %d`, code)
	if err := e.run(ctx, "osascript", "-e", script); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) wait(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	select {
	case <-time.After(time.Duration(a.Seconds) * time.Second):
		return ActionResult{Success: true}, nil
	case <-ctx.Done():
		return ActionResult{}, ctx.Err()
	}
}

func (e *DesktopExecutor) snapshot(ctx context.Context) (ActionResult, error) {
	tree, err := e.sensor.SnapshotUI(ctx, nil)
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true, Output: fmt.Sprintf("snapshot captured at %d with %d nodes", tree.CapturedAt, len(tree.Flatten()))}, nil
}

func (e *DesktopExecutor) copy(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	cmd := exec.CommandContext(ctx, "pbcopy")
	cmd.Stdin = strings.NewReader(a.Text)
	if err := cmd.Run(); err != nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "")
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) paste(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	if err := e.run(ctx, "osascript", "-e", `tell application "System Events" to keystroke "v" using command down`); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true}, nil
}

func (e *DesktopExecutor) readClipboard(ctx context.Context) (ActionResult, error) {
	cmd := exec.CommandContext(ctx, "pbpaste")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "clipboard may be empty or permission denied")
	}
	return ActionResult{Success: true, Output: out.String()}, nil
}

// transfer implements the switch->select-all->copy->switch->paste sequence
// from §4.2's table, treating the clipboard as a single-slot mailbox owned
// by the in-flight transfer (§5).
func (e *DesktopExecutor) transfer(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	if _, err := e.activateApp(ctx, coreapi.Action{Type: coreapi.ActionActivateApp, App: a.FromApp}); err != nil {
		return ActionResult{}, fmt.Errorf("focus %s: %w", a.FromApp, err)
	}
	if _, err := e.shortcut(ctx, coreapi.Action{Type: coreapi.ActionShortcut, Key: "a", Mods: []string{"command"}}); err != nil {
		return ActionResult{}, fmt.Errorf("select-all in %s: %w", a.FromApp, err)
	}
	if _, err := e.shortcut(ctx, coreapi.Action{Type: coreapi.ActionShortcut, Key: "c", Mods: []string{"command"}}); err != nil {
		return ActionResult{}, fmt.Errorf("copy from %s: %w", a.FromApp, err)
	}
	if _, err := e.activateApp(ctx, coreapi.Action{Type: coreapi.ActionActivateApp, App: a.ToApp}); err != nil {
		return ActionResult{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, fmt.Sprintf("failed to focus %s", a.ToApp))
	}
	if _, err := e.paste(ctx, coreapi.Action{Type: coreapi.ActionPaste}); err != nil {
		return ActionResult{}, fmt.Errorf("paste into %s: %w", a.ToApp, err)
	}
	return ActionResult{Success: true}, nil
}

// shell executes an already policy-approved shell command (the Planner's
// Check step runs Policy.CheckShell before Execute is ever called for a
// shell Action) and persists the outcome to exec_results for the CLI/API's
// history views and the Verifier's cross-reference.
func (e *DesktopExecutor) shell(ctx context.Context, a coreapi.Action) (ActionResult, error) {
	started := time.Now()
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", a.Cmd)
	if a.Cwd != "" {
		cmd.Dir = a.Cwd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	finished := time.Now()

	status := "success"
	exitCode := 0
	if runErr != nil {
		status = "failed"
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := coreapi.ExecResult{
		ID: fmt.Sprintf("exec-%d", started.UnixNano()), Command: a.Cmd, Cwd: a.Cwd,
		Status: status, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(),
		StartedAt: started, FinishedAt: finished,
	}
	if e.store != nil {
		if err := e.store.InsertExecResult(ctx, result); err != nil {
			e.logger.Warn("actionexec: failed to persist exec result: %v", err)
		}
	}

	if runErr != nil {
		kind := coreerrors.KindExecutionError
		if ctx.Err() != nil {
			kind = coreerrors.KindTimeout
		}
		return ActionResult{ExecResultID: result.ID, Output: stdout.String()},
			coreerrors.NewCoreError(kind, fmt.Errorf("%s: exit %d: %s", a.Cmd, exitCode, stderr.String()), "")
	}
	return ActionResult{Success: true, Output: stdout.String(), ExecResultID: result.ID}, nil
}

func (e *DesktopExecutor) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return coreerrors.NewCoreError(coreerrors.KindExecutionError, fmt.Errorf("%s: %w (%s)", name, err, stderr.String()), "")
	}
	return nil
}

func quoteAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// keyCodes maps the Planner's normalized key names to macOS virtual key
// codes used by `key code N` in System Events.
var keyCodes = map[string]int{
	"escape": 53, "esc": 53, "return": 36, "enter": 36, "tab": 48,
	"space": 49, "delete": 51, "backspace": 51,
	"left": 123, "right": 124, "down": 125, "up": 126,
	"a": 0, "s": 1, "d": 2, "f": 3, "c": 8, "v": 9, "x": 7, "z": 6,
}

func appleScriptModifiers(mods []string) string {
	var out []string
	for _, m := range mods {
		switch strings.ToLower(m) {
		case "cmd", "command":
			out = append(out, "command down")
		case "shift":
			out = append(out, "shift down")
		case "opt", "option", "alt":
			out = append(out, "option down")
		case "ctrl", "control":
			out = append(out, "control down")
		}
	}
	return strings.Join(out, ", ")
}
