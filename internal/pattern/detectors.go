package pattern

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"surf-core/internal/coreapi"
)

const maxSampleEvents = 3

func sample(events []coreapi.Event) []coreapi.Event {
	if len(events) <= maxSampleEvents {
		return events
	}
	return events[len(events)-maxSampleEvents:]
}

// detectAppSequence counts singleton app_switch occurrences and transition
// bigrams, emitting a pattern per app (or app pair) that clears min_occ
// (§4.7's "count singletons and transition bigrams of app_switch events").
func detectAppSequence(events []coreapi.Event, th Thresholds) []coreapi.DetectedPattern {
	var switches []coreapi.Event
	for _, e := range events {
		if e.EventType == "app_switch" && e.App != "" {
			switches = append(switches, e)
		}
	}

	singles := map[string][]coreapi.Event{}
	bigrams := map[string][]coreapi.Event{}
	for i, e := range switches {
		singles[e.App] = append(singles[e.App], e)
		if i > 0 && switches[i-1].App != e.App {
			key := switches[i-1].App + " -> " + e.App
			bigrams[key] = append(bigrams[key], e)
		}
	}

	var out []coreapi.DetectedPattern
	now := clockNow()
	for app, occ := range singles {
		if len(occ) < th.MinOccurrences {
			continue
		}
		desc := fmt.Sprintf("switches to %s", app)
		out = append(out, coreapi.DetectedPattern{
			PatternID:       patternID(coreapi.PatternAppSequence, desc),
			Type:            coreapi.PatternAppSequence,
			Description:     desc,
			Occurrences:     len(occ),
			SimilarityScore: 1.0,
			SampleEvents:    sample(occ),
			DetectedAt:      now,
		})
	}
	for transition, occ := range bigrams {
		if len(occ) < th.MinOccurrences {
			continue
		}
		desc := fmt.Sprintf("switches %s", transition)
		out = append(out, coreapi.DetectedPattern{
			PatternID:       patternID(coreapi.PatternAppSequence, desc),
			Type:            coreapi.PatternAppSequence,
			Description:     desc,
			Occurrences:     len(occ),
			SimilarityScore: 1.0,
			SampleEvents:    sample(occ),
			DetectedAt:      now,
		})
	}
	sortPatterns(out)
	return out
}

// detectKeywordRepeat splits typed text into lowercase tokens of length >= 3
// and emits a pattern per token seen at least 5 times (§4.7).
func detectKeywordRepeat(events []coreapi.Event, th Thresholds) []coreapi.DetectedPattern {
	tokenEvents := map[string][]coreapi.Event{}
	for _, e := range events {
		text, ok := e.Payload["text"].(string)
		if !ok || text == "" {
			continue
		}
		for _, tok := range tokenize(text) {
			tokenEvents[tok] = append(tokenEvents[tok], e)
		}
	}

	var out []coreapi.DetectedPattern
	now := clockNow()
	for tok, occ := range tokenEvents {
		if len(occ) < th.MinOccurrences {
			continue
		}
		desc := fmt.Sprintf("types %q repeatedly", tok)
		out = append(out, coreapi.DetectedPattern{
			PatternID:       patternID(coreapi.PatternKeywordRepeat, desc),
			Type:            coreapi.PatternKeywordRepeat,
			Description:     desc,
			Occurrences:     len(occ),
			SimilarityScore: 1.0,
			SampleEvents:    sample(occ),
			DetectedAt:      now,
		})
	}
	sortPatterns(out)
	return out
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var out []string
	seen := map[string]bool{}
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// detectFilePattern groups filesystem events by extension (§4.7).
func detectFilePattern(events []coreapi.Event, th Thresholds) []coreapi.DetectedPattern {
	byExt := map[string][]coreapi.Event{}
	for _, e := range events {
		if e.Resource == nil || e.Resource.Type != "file" {
			continue
		}
		ext := extOf(e.Resource.ID)
		if ext == "" {
			continue
		}
		byExt[ext] = append(byExt[ext], e)
	}

	var out []coreapi.DetectedPattern
	now := clockNow()
	for ext, occ := range byExt {
		if len(occ) < th.MinOccurrences {
			continue
		}
		desc := fmt.Sprintf("works with %s files", ext)
		out = append(out, coreapi.DetectedPattern{
			PatternID:       patternID(coreapi.PatternFilePattern, desc),
			Type:            coreapi.PatternFilePattern,
			Description:     desc,
			Occurrences:     len(occ),
			SimilarityScore: 1.0,
			SampleEvents:    sample(occ),
			DetectedAt:      now,
		})
	}
	sortPatterns(out)
	return out
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

// detectTimeBasedAction keys app_switch events by (app, weekday, hour)
// (§4.7).
func detectTimeBasedAction(events []coreapi.Event, th Thresholds) []coreapi.DetectedPattern {
	byKey := map[string][]coreapi.Event{}
	for _, e := range events {
		if e.EventType != "app_switch" || e.App == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s|%02d", e.App, e.TS.Weekday(), e.TS.Hour())
		byKey[key] = append(byKey[key], e)
	}

	var out []coreapi.DetectedPattern
	now := clockNow()
	for key, occ := range byKey {
		if len(occ) < th.MinOccurrences {
			continue
		}
		parts := strings.SplitN(key, "|", 3)
		desc := fmt.Sprintf("opens %s on %s around %s:00", parts[0], parts[1], parts[2])
		out = append(out, coreapi.DetectedPattern{
			PatternID:       patternID(coreapi.PatternTimeBasedAction, desc),
			Type:            coreapi.PatternTimeBasedAction,
			Description:     desc,
			Occurrences:     len(occ),
			SimilarityScore: 1.0,
			SampleEvents:    sample(occ),
			DetectedAt:      now,
		})
	}
	sortPatterns(out)
	return out
}

func sortPatterns(patterns []coreapi.DetectedPattern) {
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].PatternID < patterns[j].PatternID
	})
}

// clockNow is a seam so tests can exercise detectors deterministically; in
// production it is just time.Now.
var clockNow = time.Now
