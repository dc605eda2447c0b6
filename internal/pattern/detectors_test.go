package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
)

func appSwitchEvent(app string, ts time.Time) coreapi.Event {
	return coreapi.Event{EventID: app + ts.String(), TS: ts, EventType: "app_switch", App: app}
}

func TestDetectAppSequence_EmitsSingletonAboveThreshold(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		appSwitchEvent("Slack", base),
		appSwitchEvent("Slack", base.Add(time.Hour)),
		appSwitchEvent("Slack", base.Add(2*time.Hour)),
		appSwitchEvent("Slack", base.Add(3*time.Hour)),
	}

	patterns := detectAppSequence(events, Thresholds{MinOccurrences: 3, MinSimilarity: 0.8})
	require.Len(t, patterns, 1)
	require.Equal(t, coreapi.PatternAppSequence, patterns[0].Type)
	require.Equal(t, 4, patterns[0].Occurrences)
	require.LessOrEqual(t, len(patterns[0].SampleEvents), 3)
}

func TestDetectAppSequence_SkipsBelowThreshold(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		appSwitchEvent("Mail", base),
		appSwitchEvent("Mail", base.Add(time.Hour)),
	}

	patterns := detectAppSequence(events, Thresholds{MinOccurrences: 3})
	require.Empty(t, patterns)
}

func TestDetectKeywordRepeat_TokenizesAndCounts(t *testing.T) {
	base := time.Now()
	var events []coreapi.Event
	for i := 0; i < 5; i++ {
		events = append(events, coreapi.Event{
			EventID:   "k" + string(rune('a'+i)),
			TS:        base.Add(time.Duration(i) * time.Minute),
			EventType: "key_typed",
			Payload:   map[string]any{"text": "remember to deploy"},
		})
	}

	patterns := detectKeywordRepeat(events, Thresholds{MinOccurrences: 5})
	var found bool
	for _, p := range patterns {
		if p.Description == `types "deploy" repeatedly` {
			found = true
			require.Equal(t, 5, p.Occurrences)
		}
	}
	require.True(t, found)
}

func TestDetectFilePattern_GroupsByExtension(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		{EventID: "f1", TS: base, Resource: &coreapi.Resource{Type: "file", ID: "/tmp/a.md"}},
		{EventID: "f2", TS: base, Resource: &coreapi.Resource{Type: "file", ID: "/tmp/b.md"}},
		{EventID: "f3", TS: base, Resource: &coreapi.Resource{Type: "file", ID: "/tmp/c.md"}},
	}

	patterns := detectFilePattern(events, Thresholds{MinOccurrences: 3})
	require.Len(t, patterns, 1)
	require.Contains(t, patterns[0].Description, "md")
}

func TestDetectTimeBasedAction_KeysOnAppWeekdayHour(t *testing.T) {
	fixed := time.Date(2026, 7, 27, 9, 0, 0, 0, time.UTC) // a Monday
	events := []coreapi.Event{
		appSwitchEvent("Mail", fixed),
		appSwitchEvent("Mail", fixed.AddDate(0, 0, 7)),
		appSwitchEvent("Mail", fixed.AddDate(0, 0, 14)),
	}

	patterns := detectTimeBasedAction(events, Thresholds{MinOccurrences: 3})
	require.Len(t, patterns, 1)
	require.Equal(t, 3, patterns[0].Occurrences)
}

func TestTokenize_FiltersShortAndDuplicateTokens(t *testing.T) {
	tokens := tokenize("Go go deploy Deploy to the app, now!")
	require.Contains(t, tokens, "deploy")
	require.NotContains(t, tokens, "to")
	require.NotContains(t, tokens, "go")
	count := 0
	for _, tok := range tokens {
		if tok == "deploy" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestPatternID_StableForSameTypeAndDescription(t *testing.T) {
	a := patternID(coreapi.PatternAppSequence, "switches to Slack")
	b := patternID(coreapi.PatternAppSequence, "Switches To Slack")
	require.Equal(t, a, b)

	c := patternID(coreapi.PatternFilePattern, "switches to Slack")
	require.NotEqual(t, a, c)
}
