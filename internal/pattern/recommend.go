package pattern

import (
	"strings"

	"surf-core/internal/coreapi"
)

// DefaultTemplates are the built-in zero-cost recommendation templates
// (§4.7 step 3). Operators can extend this list; nothing here is a
// functional requirement beyond covering the common patterns this engine
// is expected to recognize out of the box.
var DefaultTemplates = []Template{
	{
		Type:             coreapi.PatternAppSequence,
		RequiredKeywords: []string{"slack"},
		MinMatches:       1,
		BaseConfidence:   0.8,
		Title:            "Work Start Checklist",
		Summary:          "You open Slack at the start of most sessions. Automate the morning checklist.",
		Trigger:          "daily app_switch to Slack",
		N8NPrompt:        "When the user opens Slack, run their morning checklist routine.",
	},
	{
		Type:             coreapi.PatternFilePattern,
		RequiredKeywords: []string{"md", "txt"},
		MinMatches:       1,
		BaseConfidence:   0.7,
		Title:            "Notes Cleanup",
		Summary:          "You frequently touch text notes. Automate tidying and indexing them.",
		Trigger:          "file_modified on notes",
		N8NPrompt:        "When a markdown or text note changes, re-index it and suggest a summary.",
	},
	{
		Type:             coreapi.PatternKeywordRepeat,
		RequiredKeywords: []string{"todo", "task"},
		MinMatches:       1,
		BaseConfidence:   0.7,
		Title:            "Task Capture",
		Summary:          "You repeatedly type task-related keywords. Automate capturing them into a list.",
		Trigger:          "keyword repeat: todo/task",
		N8NPrompt:        "When the user types a task-like keyword repeatedly, offer to capture it as a todo.",
	},
}

// tokensFromPattern extracts the keyword universe a template is matched
// against: words from the description plus sample event app names and
// resource extensions (§4.7 step 3, "tokens are extracted from the
// pattern's description + sample events").
func tokensFromPattern(p coreapi.DetectedPattern) map[string]bool {
	tokens := map[string]bool{}
	for _, tok := range tokenize(p.Description) {
		tokens[tok] = true
	}
	for _, e := range p.SampleEvents {
		if e.App != "" {
			tokens[strings.ToLower(e.App)] = true
		}
		if e.Resource != nil && e.Resource.Type == "file" {
			if ext := extOf(e.Resource.ID); ext != "" {
				tokens[ext] = true
			}
		}
	}
	return tokens
}

// matchTemplate returns the first template of the pattern's type whose
// matches clear MinMatches, along with the confidence score (§4.7 step 3).
func matchTemplate(p coreapi.DetectedPattern, templates []Template) (Template, float64, bool) {
	tokens := tokensFromPattern(p)
	for _, tmpl := range templates {
		if tmpl.Type != p.Type {
			continue
		}
		matches := 0
		for _, kw := range tmpl.RequiredKeywords {
			if tokens[strings.ToLower(kw)] {
				matches++
			}
		}
		if matches < tmpl.MinMatches {
			continue
		}
		confidence := tmpl.BaseConfidence*(0.7+0.1*float64(matches)) + 0.2*p.SimilarityScore
		if confidence > 1.0 {
			confidence = 1.0
		}
		return tmpl, confidence, true
	}
	return Template{}, 0, false
}

// patternHasPII reports whether any sample event carries privacy
// annotations, used to gate LLM-routed proposal generation (§4.7 step 4,
// "no PII flag").
func patternHasPII(p coreapi.DetectedPattern) bool {
	for _, e := range p.SampleEvents {
		if e.Privacy != nil && (e.Privacy.Dropped || len(e.Privacy.Hashed) > 0 || len(e.Privacy.Redacted) > 0) {
			return true
		}
	}
	return false
}

func evidenceFor(p coreapi.DetectedPattern) []string {
	var out []string
	for _, e := range p.SampleEvents {
		out = append(out, e.EventID)
	}
	return out
}
