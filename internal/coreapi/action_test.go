package coreapi

import "testing"

func TestNormalizeActionName(t *testing.T) {
	cases := map[string]ActionType{
		"open_browser": ActionOpenURL,
		"OPEN":         ActionOpenURL,
		"click":        ActionClickVisual,
		"cmd":          ActionShell,
		"close":        ActionKey,
		"popover":      ActionKey,
		"switch_app":   ActionActivateApp,
		"open_url":     ActionOpenURL,
	}
	for raw, want := range cases {
		if got := NormalizeActionName(raw); got != want {
			t.Errorf("NormalizeActionName(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNormalizeActionOpenApp(t *testing.T) {
	a, err := NormalizeAction(map[string]any{"action": "open_app", "app": "Calculator"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Type != ActionOpenApp || a.App != "Calculator" {
		t.Errorf("got %+v", a)
	}
}

func TestNormalizeActionFlattensNested(t *testing.T) {
	raw := map[string]any{
		"action": map[string]any{
			"action": "open_url",
			"url":    "https://example.com",
		},
	}
	a, err := NormalizeAction(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Type != ActionOpenURL || a.URL != "https://example.com" {
		t.Errorf("got %+v", a)
	}
}

func TestNormalizeActionShortcutKeys(t *testing.T) {
	a, err := NormalizeAction(map[string]any{
		"action": "shortcut",
		"key":    "a",
		"mods":   []any{"cmd", "shift"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Mods) != 2 || a.Mods[0] != "cmd" || a.Mods[1] != "shift" {
		t.Errorf("mods = %v", a.Mods)
	}
}

func TestNormalizeActionUnknownErrors(t *testing.T) {
	_, err := NormalizeAction(map[string]any{"action": "teleport"})
	if err == nil {
		t.Fatal("expected an error for an unknown action")
	}
}

func TestNormalizeActionRequiredFieldsMissing(t *testing.T) {
	_, err := NormalizeAction(map[string]any{"action": "open_url"})
	if err == nil {
		t.Fatal("expected an error when url is missing")
	}
}

func TestActionFingerprintUniqueness(t *testing.T) {
	p1 := AutomationProposal{Title: "Daily Report", Trigger: "9am"}
	p2 := AutomationProposal{Title: "daily report", Trigger: "9AM"}
	if p1.Fingerprint() != p2.Fingerprint() {
		t.Errorf("expected case-insensitive fingerprint match: %s vs %s", p1.Fingerprint(), p2.Fingerprint())
	}
}

func TestPlanKeyStable(t *testing.T) {
	k1 := PlanKey("goal", []byte("capture"))
	k2 := PlanKey("goal", []byte("capture"))
	if k1 != k2 {
		t.Error("expected PlanKey to be stable for identical inputs")
	}
	k3 := PlanKey("other goal", []byte("capture"))
	if k1 == k3 {
		t.Error("expected PlanKey to differ for a different goal")
	}
}

func TestActionIsTerminal(t *testing.T) {
	if !(Action{Type: ActionDone}).IsTerminal() {
		t.Error("done should be terminal")
	}
	if (Action{Type: ActionClickVisual}).IsTerminal() {
		t.Error("click_visual should not be terminal")
	}
}
