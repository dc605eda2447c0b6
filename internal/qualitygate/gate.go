// Package qualitygate computes QualityScore from recent verification
// history and compares a current state snapshot against the single
// persisted ReleaseBaseline on a release gate check (§6 /api/quality/*,
// /api/release/*).
package qualitygate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"surf-core/internal/coreapi"
	"surf-core/internal/diff"
	"surf-core/internal/logging"
	"surf-core/internal/storage"
)

// Gate blends verification history into a score and gates releases against
// a stored baseline.
type Gate struct {
	store         *storage.Store
	diffGen       *diff.Generator
	logger        logging.Logger
	lookback      int
	dropThreshold float64
}

// New builds a Gate. lookback is how many recent VerificationRuns to blend
// into a score (0 defaults to 20); dropThreshold is how much a quality score
// may fall before the gate calls it a regression (0 defaults to 0.3, per
// RELEASE_QUALITY_DROP in the original implementation).
func New(store *storage.Store, lookback int, dropThreshold float64, logger logging.Logger) *Gate {
	if lookback <= 0 {
		lookback = 20
	}
	if dropThreshold <= 0 {
		dropThreshold = 0.3
	}
	return &Gate{
		store:         store,
		diffGen:       diff.NewGenerator(3, false),
		logger:        logging.OrNop(logger),
		lookback:      lookback,
		dropThreshold: dropThreshold,
	}
}

// Score computes a QualityScore as a recency-weighted blend of the pass rate
// over the last `lookback` VerificationRuns (most recent runs count more
// towards the blend), persists it, and returns it.
func (g *Gate) Score(ctx context.Context) (coreapi.QualityScore, error) {
	runs, err := g.store.RecentVerificationRuns(ctx, g.lookback)
	if err != nil {
		return coreapi.QualityScore{}, err
	}

	q := coreapi.QualityScore{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if len(runs) == 0 {
		q.Score = 1.0
		q.Basis = "no verification history, defaulting to 1.0"
	} else {
		var weightedSum, weightTotal float64
		for i, r := range runs {
			// runs are newest-first; the most recent run gets the highest weight.
			weight := float64(len(runs) - i)
			if r.Passed {
				weightedSum += weight
			}
			weightTotal += weight
		}
		q.Score = weightedSum / weightTotal
		q.Basis = fmt.Sprintf("recency-weighted pass rate over last %d verification runs", len(runs))
	}

	if err := g.store.InsertQualityScore(ctx, q); err != nil {
		return coreapi.QualityScore{}, err
	}
	return q, nil
}

// Latest returns the most recently computed score, if any.
func (g *Gate) Latest(ctx context.Context) (coreapi.QualityScore, bool, error) {
	return g.store.LatestQualityScore(ctx)
}

// snapshotBaseline computes a fresh quality score and wraps it with
// snapshotJSON (an opaque caller-supplied description of current state --
// allowlist contents, recent recommendation set, whatever the caller wants
// gated) into a ReleaseBaseline-shaped value, without persisting it.
func (g *Gate) snapshotBaseline(ctx context.Context, snapshotJSON string) (coreapi.ReleaseBaseline, error) {
	score, err := g.Score(ctx)
	if err != nil {
		return coreapi.ReleaseBaseline{}, err
	}
	return coreapi.ReleaseBaseline{
		BaselineJSON: fmt.Sprintf(`{"quality_score":%f,"snapshot":%s}`, score.Score, orNullJSON(snapshotJSON)),
		UpdatedAt:    time.Now(),
	}, nil
}

// BuildBaseline snapshots the current state and persists it as the single
// release baseline row (§6 POST /api/release/baseline). Future Gate calls
// compare against this snapshot until it is replaced by a later call.
func (g *Gate) BuildBaseline(ctx context.Context, snapshotJSON string) (coreapi.ReleaseBaseline, error) {
	b, err := g.snapshotBaseline(ctx, snapshotJSON)
	if err != nil {
		return coreapi.ReleaseBaseline{}, err
	}
	if err := g.store.SetReleaseBaseline(ctx, b); err != nil {
		return coreapi.ReleaseBaseline{}, err
	}
	return b, nil
}

func orNullJSON(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

// GateResult is the outcome of a release gate check.
type GateResult struct {
	OK          bool
	Regressions []string
	Warnings    []string
	Diff        string
	Current     coreapi.ReleaseBaseline
	Baseline    *coreapi.ReleaseBaseline
}

// Gate computes a current baseline-shaped snapshot (without persisting it)
// and compares it against the stored baseline: a quality score drop beyond
// dropThreshold is a regression; everything else surfaces as an
// informational diff (the original implementation's compare_quality/
// compare_semantic/compare_performance/compare_consistency pattern,
// collapsed into one generic score + snapshot diff since this module tracks
// a single opaque snapshot rather than four separate subsystems).
func (g *Gate) Gate(ctx context.Context, snapshotJSON string) (GateResult, error) {
	baseline, found, err := g.store.GetReleaseBaseline(ctx)
	if err != nil {
		return GateResult{}, err
	}

	current, err := g.snapshotBaseline(ctx, snapshotJSON)
	if err != nil {
		return GateResult{}, err
	}
	result := GateResult{OK: true, Current: current}
	if !found {
		result.Warnings = append(result.Warnings, "no release baseline stored")
		return result, nil
	}
	result.Baseline = &baseline

	baseScore, curScore, ok := extractScores(baseline.BaselineJSON, current.BaselineJSON)
	if !ok {
		result.Warnings = append(result.Warnings, "could not parse baseline or current quality score")
	} else if curScore+g.dropThreshold < baseScore {
		result.Regressions = append(result.Regressions, fmt.Sprintf("quality score dropped (%.3f -> %.3f)", baseScore, curScore))
	}

	dr, err := g.diffGen.GenerateUnified(baseline.BaselineJSON, current.BaselineJSON, "release_baseline.json")
	if err == nil {
		result.Diff = dr.UnifiedDiff
	}

	result.OK = len(result.Regressions) == 0
	return result, nil
}

func extractScores(baselineJSON, currentJSON string) (base, cur float64, ok bool) {
	base, okBase := parseQualityScore(baselineJSON)
	cur, okCur := parseQualityScore(currentJSON)
	return base, cur, okBase && okCur
}

func parseQualityScore(blob string) (float64, bool) {
	var wrapper struct {
		QualityScore float64 `json:"quality_score"`
	}
	if err := json.Unmarshal([]byte(blob), &wrapper); err != nil {
		return 0, false
	}
	return wrapper.QualityScore, true
}
