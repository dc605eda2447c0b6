package coreapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType is the closed schema of executable actions (§4.2). "read" and
// "snapshot" are first-class variants per the original implementation's
// action_schema, not just side effects of the Observe phase.
type ActionType string

const (
	ActionOpenURL        ActionType = "open_url"
	ActionOpenApp        ActionType = "open_app"
	ActionActivateApp    ActionType = "activate_app"
	ActionClickRef       ActionType = "click_ref"
	ActionClickVisual    ActionType = "click_visual"
	ActionTypeText          ActionType = "type"
	ActionKey            ActionType = "key"
	ActionShortcut       ActionType = "shortcut"
	ActionScroll         ActionType = "scroll"
	ActionWait           ActionType = "wait"
	ActionShell          ActionType = "shell"
	ActionCopy           ActionType = "copy"
	ActionPaste          ActionType = "paste"
	ActionReadClipboard  ActionType = "read_clipboard"
	ActionTransfer       ActionType = "transfer"
	ActionRead           ActionType = "read"
	ActionSnapshot       ActionType = "snapshot"
	ActionReport         ActionType = "report"
	ActionReply          ActionType = "reply"
	ActionDone           ActionType = "done"
	ActionFail           ActionType = "fail"
)

// Action is a single normalized, typed instruction the Action Executor can
// run. Fields not relevant to Type are left zero.
type Action struct {
	Type ActionType `json:"action"`

	URL         string   `json:"url,omitempty"`
	App         string   `json:"app,omitempty"`
	Ref         string   `json:"ref,omitempty"`
	Double      bool     `json:"double,omitempty"`
	Description string   `json:"description,omitempty"`
	Text        string   `json:"text,omitempty"`
	Key         string   `json:"key,omitempty"`
	Mods        []string `json:"mods,omitempty"`
	Dir         string   `json:"dir,omitempty"`
	Seconds     int      `json:"seconds,omitempty"`
	Cmd         string   `json:"cmd,omitempty"`
	Cwd         string   `json:"cwd,omitempty"`
	FromApp     string   `json:"from_app,omitempty"`
	ToApp       string   `json:"to_app,omitempty"`
	Query       string   `json:"query,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// ActionKey returns a stable string identifying this action's "shape" for
// loop-break comparisons (§4.5 step 5): type plus its primary argument.
func (a Action) ActionKey() string {
	switch a.Type {
	case ActionOpenURL:
		return string(a.Type) + ":" + a.URL
	case ActionOpenApp, ActionActivateApp:
		return string(a.Type) + ":" + a.App
	case ActionClickRef:
		return string(a.Type) + ":" + a.Ref
	case ActionClickVisual:
		return string(a.Type) + ":" + a.Description
	case ActionTypeText:
		return string(a.Type) + ":" + a.Text
	case ActionKey, ActionShortcut:
		return string(a.Type) + ":" + a.Key
	case ActionScroll:
		return string(a.Type) + ":" + a.Dir
	case ActionShell:
		return string(a.Type) + ":" + a.Cmd
	default:
		return string(a.Type)
	}
}

// actionSynonyms canonicalizes common aliases the plan LLM emits, mirroring
// normalize_action_name in the original implementation.
var actionSynonyms = map[string]ActionType{
	"open_browser":    ActionOpenURL,
	"open":            ActionOpenURL,
	"navigate":        ActionOpenURL,
	"click":           ActionClickVisual,
	"ui.click":        ActionClickVisual,
	"click_text":      ActionClickVisual,
	"click_element":   ActionClickRef,
	"take_snapshot":   ActionSnapshot,
	"ui.snapshot":     ActionSnapshot,
	"mcp_call":        "mcp",
	"external_tool":   "mcp",
	"copy_to_clipboard": ActionCopy,
	"cmd":             ActionShell,
	"command":         ActionShell,
	"run_shell":       ActionShell,
	"keypress":        ActionKey,
	"press_key":       ActionKey,
	"switch_app":      ActionActivateApp,
	"activate":        ActionActivateApp,
	"finish":          ActionDone,
	"complete":        ActionDone,
	"answer":          ActionReply,
	"say":             ActionReply,
	"sleep":           ActionWait,
	"screenshot":      ActionSnapshot,
}

// closeUnknownSynonyms are unknown/ambiguous actions mapped to a safe
// escape-key chord, per §4.5 step 3 ("close/x/popover -> key:escape").
var closeUnknownSynonyms = map[string]bool{
	"close":   true,
	"x":       true,
	"popover": true,
	"dismiss": true,
}

// NormalizeActionName canonicalizes a raw action name into the closed
// schema, per action_schema.rs's normalize_action_name.
func NormalizeActionName(raw string) ActionType {
	name := strings.ToLower(strings.TrimSpace(raw))
	if closeUnknownSynonyms[name] {
		return ActionKey
	}
	if canon, ok := actionSynonyms[name]; ok {
		return canon
	}
	return ActionType(name)
}

// validActionTypes is the closed set an Action's normalized Type must belong
// to; anything else is a schema_error.
var validActionTypes = map[ActionType]bool{
	ActionOpenURL: true, ActionOpenApp: true, ActionActivateApp: true,
	ActionClickRef: true, ActionClickVisual: true, ActionTypeText: true,
	ActionKey: true, ActionShortcut: true, ActionScroll: true, ActionWait: true,
	ActionShell: true, ActionCopy: true, ActionPaste: true, ActionReadClipboard: true,
	ActionTransfer: true, ActionRead: true, ActionSnapshot: true,
	ActionReport: true, ActionReply: true, ActionDone: true, ActionFail: true,
}

// NormalizeAction flattens a nested {action:{action:...}} shape, applies
// synonym canonicalization, and validates the required fields for the
// resulting type. It mirrors normalize_action/ActionValidation in the
// original implementation. On failure it returns a zero Action and the
// error; the Planner's Normalize stage then substitutes a "report" action.
func NormalizeAction(raw map[string]any) (Action, error) {
	flat, err := flattenNestedAction(raw)
	if err != nil {
		return Action{}, err
	}

	rawType, _ := flat["action"].(string)
	if rawType == "" {
		// Fall back through alternate keys the LLM sometimes uses.
		if v, ok := flat["tool"].(string); ok {
			rawType = v
		} else if v, ok := flat["type"].(string); ok {
			rawType = v
		}
	}
	if rawType == "" {
		return Action{}, fmt.Errorf("missing action field")
	}

	a := Action{Type: NormalizeActionName(rawType)}
	if !validActionTypes[a.Type] {
		return Action{}, fmt.Errorf("unknown action type %q", rawType)
	}

	a.URL, _ = flat["url"].(string)
	a.App, _ = flat["app"].(string)
	a.Ref, _ = flat["ref"].(string)
	a.Double, _ = flat["double"].(bool)
	a.Description, _ = firstString(flat, "description", "desc", "target")
	a.Text, _ = firstString(flat, "text", "value")
	a.Key, _ = firstString(flat, "key", "shortcut")
	a.Mods = parseKeysArray(flat["mods"])
	a.Dir, _ = flat["dir"].(string)
	if secs, ok := asInt(flat["seconds"]); ok {
		a.Seconds = secs
	}
	a.Cmd, _ = firstString(flat, "cmd", "command")
	a.Cwd, _ = flat["cwd"].(string)
	a.FromApp, _ = flat["from_app"].(string)
	a.ToApp, _ = flat["to_app"].(string)
	a.Query, _ = flat["query"].(string)
	a.Reason, _ = flat["reason"].(string)

	if err := validateRequiredFields(a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// flattenNestedAction repeatedly unwraps {"action": {"action": ...}} shapes
// the plan LLM occasionally emits.
func flattenNestedAction(raw map[string]any) (map[string]any, error) {
	cur := raw
	for depth := 0; depth < 5; depth++ {
		inner, ok := cur["action"].(map[string]any)
		if !ok {
			return cur, nil
		}
		cur = inner
	}
	return nil, fmt.Errorf("action nesting too deep")
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// parseKeysArray accepts either a JSON array of modifier strings or a single
// "+"-joined string ("cmd+shift"), mirroring parse_keys_array.
func parseKeysArray(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return strings.Split(val, "+")
	default:
		return nil
	}
}

// validateRequiredFields enforces the per-action-type contract from §4.2's
// table, mirroring action_schema.rs's per-variant validation switch.
func validateRequiredFields(a Action) error {
	switch a.Type {
	case ActionOpenURL:
		if a.URL == "" {
			return fmt.Errorf("open_url requires url")
		}
	case ActionOpenApp, ActionActivateApp:
		if a.App == "" {
			return fmt.Errorf("%s requires app", a.Type)
		}
	case ActionClickRef:
		if a.Ref == "" {
			return fmt.Errorf("click_ref requires ref")
		}
	case ActionClickVisual:
		if a.Description == "" {
			return fmt.Errorf("click_visual requires description")
		}
	case ActionTypeText:
		if a.Text == "" {
			return fmt.Errorf("type requires text")
		}
	case ActionKey, ActionShortcut:
		if a.Key == "" {
			return fmt.Errorf("%s requires key", a.Type)
		}
	case ActionScroll:
		if a.Dir != "up" && a.Dir != "down" {
			return fmt.Errorf("scroll requires dir up or down")
		}
	case ActionWait:
		if a.Seconds < 0 {
			return fmt.Errorf("wait requires a non-negative seconds value")
		}
	case ActionShell:
		if a.Cmd == "" {
			return fmt.Errorf("shell requires cmd")
		}
	case ActionCopy:
		if a.Text == "" {
			return fmt.Errorf("copy requires text")
		}
	case ActionTransfer:
		if a.FromApp == "" || a.ToApp == "" {
			return fmt.Errorf("transfer requires from_app and to_app")
		}
	case ActionRead:
		if a.Query == "" {
			return fmt.Errorf("read requires query")
		}
	case ActionFail:
		if a.Reason == "" {
			return fmt.Errorf("fail requires reason")
		}
	case ActionReply:
		if a.Text == "" {
			return fmt.Errorf("reply requires text")
		}
	case ActionPaste, ActionReadClipboard, ActionSnapshot, ActionReport, ActionDone:
		// no required fields
	}
	return nil
}

// IsTerminal reports whether this Action ends the Planner's step loop
// (glossary: terminal actions done/fail/reply).
func (a Action) IsTerminal() bool {
	switch a.Type {
	case ActionDone, ActionFail, ActionReply:
		return true
	default:
		return false
	}
}
