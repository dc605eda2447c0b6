package pattern

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"surf-core/internal/coreapi"
	"surf-core/internal/logging"
	"surf-core/internal/metrics"
	"surf-core/internal/storage"
	"surf-core/internal/vectormemory"
)

// Engine is the Pattern & Recommendation Engine (§4.7): it mines recent
// Events into DetectedPatterns and turns the recommendable ones into
// AutomationProposals, running both on flush and on a background tick.
type Engine struct {
	store     *storage.Store
	vector    *vectormemory.Store
	llm       ProposalLLM
	logger    logging.Logger
	cfg       Config
	templates []Template
}

// New builds an Engine. vector and llm may both be nil; semantic merge and
// LLM-routed proposals are skipped when absent.
func New(store *storage.Store, vector *vectormemory.Store, llm ProposalLLM, cfg Config, templates []Template, logger logging.Logger) *Engine {
	if templates == nil {
		templates = DefaultTemplates
	}
	return &Engine{
		store:     store,
		vector:    vector,
		llm:       llm,
		logger:    logging.OrNop(logger),
		cfg:       cfg,
		templates: templates,
	}
}

// Analyze mines events from the last LookbackDays into DetectedPatterns,
// running all four detectors and the optional semantic merge (§4.7).
func (e *Engine) Analyze(ctx context.Context) ([]coreapi.DetectedPattern, error) {
	lookback := time.Duration(e.cfg.LookbackDays) * 24 * time.Hour
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	now := time.Now()
	events, err := e.store.EventsBetween(ctx, now.Add(-lookback), now)
	if err != nil {
		return nil, err
	}

	// The four detectors only read the shared events slice, so they run
	// concurrently, bounded to one goroutine per detector.
	detected := make([][]coreapi.DetectedPattern, 4)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error { detected[0] = detectAppSequence(events, e.cfg.AppSequence); return gctx.Err() })
	g.Go(func() error { detected[1] = detectKeywordRepeat(events, e.cfg.KeywordRepeat); return gctx.Err() })
	g.Go(func() error { detected[2] = detectFilePattern(events, e.cfg.FilePattern); return gctx.Err() })
	g.Go(func() error { detected[3] = detectTimeBasedAction(events, e.cfg.TimeBasedAction); return gctx.Err() })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var patterns []coreapi.DetectedPattern
	for _, d := range detected {
		patterns = append(patterns, d...)
	}

	var embed vectormemory.Embedder
	if e.vector != nil {
		embed = e.vector.Embed
	}
	mergeSim := e.cfg.MergeSimilarity
	if mergeSim <= 0 {
		mergeSim = 0.92
	}
	return mergeSimilar(ctx, patterns, embed, mergeSim), nil
}

func (e *Engine) thresholdFor(t coreapi.PatternType) Thresholds {
	switch t {
	case coreapi.PatternAppSequence:
		return e.cfg.AppSequence
	case coreapi.PatternKeywordRepeat:
		return e.cfg.KeywordRepeat
	case coreapi.PatternFilePattern:
		return e.cfg.FilePattern
	case coreapi.PatternTimeBasedAction:
		return e.cfg.TimeBasedAction
	default:
		return Thresholds{}
	}
}

// isRecommendable reports whether p clears its type's occurrence and
// similarity floors (§8: "For every pattern P with P.occurrences >=
// min_occ[type] and P.similarity_score >= min_sim[type]...").
func (e *Engine) isRecommendable(p coreapi.DetectedPattern) bool {
	th := e.thresholdFor(p.Type)
	return p.Occurrences >= th.MinOccurrences && p.SimilarityScore >= th.MinSimilarity
}

// Recommend runs the cooldown/budget/template/LLM-fallback pipeline over
// recommendable patterns and inserts resulting proposals with fingerprint
// uniqueness (§4.7 steps 1-5).
func (e *Engine) Recommend(ctx context.Context, patterns []coreapi.DetectedPattern) ([]coreapi.AutomationProposal, error) {
	cooldown := time.Duration(e.cfg.CooldownHours) * time.Hour
	if cooldown <= 0 {
		cooldown = 72 * time.Hour
	}
	maxPerDay := e.cfg.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = 3
	}

	budgetUsed, err := e.store.CountRecommendationsSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	var out []coreapi.AutomationProposal
	for _, p := range patterns {
		if !e.isRecommendable(p) {
			continue
		}
		if budgetUsed >= maxPerDay {
			e.logger.Info("pattern: daily recommendation budget exhausted, skipping pattern %s", p.PatternID)
			break
		}

		if last, found, err := e.store.LatestRecommendationForPattern(ctx, p.PatternID); err != nil {
			return nil, err
		} else if found && time.Since(last) < cooldown {
			continue
		}

		proposal, ok := e.proposalFor(ctx, p)
		if !ok {
			continue
		}
		if proposal.Confidence < e.cfg.MinConfidence {
			continue
		}

		exists, err := e.store.ExistsByFingerprint(ctx, proposal.Fingerprint())
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		if err := e.store.InsertRecommendation(ctx, proposal); err != nil {
			return nil, err
		}
		budgetUsed++
		out = append(out, proposal)
		metrics.RecommendationsEmittedTotal.Inc()
	}
	return out, nil
}

func (e *Engine) proposalFor(ctx context.Context, p coreapi.DetectedPattern) (coreapi.AutomationProposal, bool) {
	if tmpl, confidence, ok := matchTemplate(p, e.templates); ok {
		return coreapi.AutomationProposal{
			ID:         uuid.NewString(),
			Status:     coreapi.ProposalPending,
			Title:      tmpl.Title,
			Summary:    tmpl.Summary,
			Trigger:    tmpl.Trigger,
			N8NPrompt:  tmpl.N8NPrompt,
			Confidence: confidence,
			Evidence:   evidenceFor(p),
			PatternID:  p.PatternID,
			CreatedAt:  time.Now(),
		}, true
	}

	if e.llm == nil || patternHasPII(p) {
		return coreapi.AutomationProposal{}, false
	}
	title, summary, n8nPrompt, err := e.llm.GenerateProposal(ctx, p)
	if err != nil || title == "" {
		e.logger.Warn("pattern: LLM proposal generation failed for pattern %s: %v", p.PatternID, err)
		return coreapi.AutomationProposal{}, false
	}
	return coreapi.AutomationProposal{
		ID:         uuid.NewString(),
		Status:     coreapi.ProposalPending,
		Title:      title,
		Summary:    summary,
		Trigger:    p.Description,
		N8NPrompt:  n8nPrompt,
		Confidence: 0.5 + 0.2*p.SimilarityScore,
		Evidence:   evidenceFor(p),
		PatternID:  p.PatternID,
		CreatedAt:  time.Now(),
	}, true
}

// Tick runs one full Analyze + Recommend pass, the unit both the flush path
// and the background cron schedule invoke (§4.7, "Runs on flush and on a
// 5-min background tick").
func (e *Engine) Tick(ctx context.Context) ([]coreapi.AutomationProposal, error) {
	patterns, err := e.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return e.Recommend(ctx, patterns)
}

// Run starts a background cron schedule (SURF_PATTERN_TICK_CRON, default
// "*/5 * * * *") that calls Tick until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := e.Tick(ctx); err != nil {
			e.logger.Error("pattern: background tick failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
