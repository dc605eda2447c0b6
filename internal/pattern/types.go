// Package pattern implements the Pattern & Recommendation Engine (§4.7):
// four detectors mine recent Events for regularities, an optional semantic
// merge collapses near-duplicates, and a template-first (LLM-fallback)
// recommender turns recommendable patterns into AutomationProposals.
package pattern

import (
	"context"

	"surf-core/internal/coreapi"
)

// Thresholds are the per-type, env-tunable occurrence and similarity floors
// a DetectedPattern must clear before it is recommendable (§4.7, config.RuntimeConfig).
type Thresholds struct {
	MinOccurrences int
	MinSimilarity  float64
}

// Config bundles everything the Engine needs beyond its storage and
// embedding dependencies.
type Config struct {
	LookbackDays       int
	MergeSimilarity    float64
	CooldownHours      int
	MaxPerDay          int
	MinConfidence      float64
	AppSequence        Thresholds
	KeywordRepeat      Thresholds
	FilePattern        Thresholds
	TimeBasedAction    Thresholds
}

// Template declares a zero-cost, keyword-matched recommendation for a
// pattern type (§4.7 step 3).
type Template struct {
	Type             coreapi.PatternType
	RequiredKeywords []string
	MinMatches       int
	BaseConfidence   float64
	Title            string
	Summary          string
	Trigger          string
	N8NPrompt        string
}

// ProposalLLM generates a free-form AutomationProposal for a pattern that no
// template matched (§4.7 step 4). Implementations must respect the caller's
// PII/budget gating before being invoked; the Engine only calls this when
// routing already permits it.
type ProposalLLM interface {
	GenerateProposal(ctx context.Context, p coreapi.DetectedPattern) (title, summary, n8nPrompt string, err error)
}
