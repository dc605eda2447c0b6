// Package core wires the seven components (§2) into one process-wide
// instance: a single Store, a single Pipeline, a single Pattern Engine, and
// a Planner built from its five collaborators, matching §9's "break cyclic
// references by passing small capability records at construction."
package core

import (
	"context"
	"fmt"
	"time"

	"surf-core/internal/actionexec"
	"surf-core/internal/approval"
	"surf-core/internal/async"
	"surf-core/internal/config"
	"surf-core/internal/coreapi"
	"surf-core/internal/eventpipeline"
	"surf-core/internal/llmclient"
	"surf-core/internal/logging"
	"surf-core/internal/pattern"
	"surf-core/internal/planner"
	"surf-core/internal/policy"
	"surf-core/internal/qualitygate"
	"surf-core/internal/sensor"
	"surf-core/internal/storage"
	"surf-core/internal/vectormemory"
	"surf-core/internal/verifier"
)

// Core bundles every singleton the HTTP API and CLI need (§3 Ownership).
type Core struct {
	Cfg    *config.RuntimeConfig
	Logger logging.Logger

	Store  *storage.Store
	Vector *vectormemory.Store

	Sensor   sensor.Sensor
	Executor actionexec.Executor
	Gate     *policy.Gate
	Verifier *verifier.Verifier
	Approver approval.Approver
	LLM      *llmclient.Client

	Planner  *planner.Planner
	Pipeline *eventpipeline.Pipeline
	Pattern  *pattern.Engine
	Quality  *qualitygate.Gate
}

// Interactive picks an InteractiveApprover for CLI-driven runs rather than
// the server's NoOpApprover, matching §4.3's "proceed only after
// interactive confirm (CLI path)".
type BuildOptions struct {
	Interactive bool
}

// Build constructs every component from cfg, in leaves-first order (§2). The
// returned Core's Close must be called to release the storage handle.
func Build(cfg *config.RuntimeConfig, opts BuildOptions) (*Core, error) {
	logger := logging.New()

	store, err := storage.Open(cfg.DBPath, logging.NewComponentLogger("storage"))
	if err != nil {
		return nil, fmt.Errorf("core: open store: %w", err)
	}

	vector, err := vectormemory.Open(cfg.VectorDir, 5000, vectormemory.HashEmbedder(256), logging.NewComponentLogger("vectormemory"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("core: open vector memory: %w", err)
	}

	var (
		planLLM     planner.PlanLLM
		visualAsker verifier.VisualAsker
		locator     actionexec.VisionLocator = actionexec.NoLocator{}
		proposalLLM pattern.ProposalLLM
		anthropic   *llmclient.Client
	)
	if cfg.LLMAPIKey != "" {
		anthropic, err = llmclient.NewAnthropicClient(cfg.LLMModel, llmclient.Config{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   time.Duration(cfg.LLMTimeoutSecs) * time.Second,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("core: build llm client: %w", err)
		}
		planLLM, visualAsker, proposalLLM, locator = anthropic, anthropic, anthropic, anthropic
	} else {
		logger.Warn("core: ANTHROPIC_API_KEY not set; plan/visual/proposal model calls will return errors")
		noop := &noOpLLM{}
		planLLM, visualAsker, proposalLLM = noop, noop, noop
	}

	var approver approval.Approver
	if opts.Interactive {
		approver = approval.NewInteractiveApprover(15*time.Minute, false, true)
	} else {
		approver = approval.NewNoOpApprover()
	}

	sens := sensor.New(cfg.RasterBytes, 1.0)
	executor := actionexec.New(sens, locator, store, logging.NewComponentLogger("actionexec"))
	gate := policy.New(store, approver, cfg.ShellAllowSubstitution, cfg.ShellAllowComposites, logging.NewComponentLogger("policy"))
	v := verifier.New(store, visualAsker, logging.NewComponentLogger("verifier"))
	p := planner.New(sens, executor, gate, v, planLLM, approver, store, cfg.ContextPruneMaxMessages, logging.NewComponentLogger("planner"))
	p.SetSessionReset(cfg.SessionResetMode, cfg.SessionResetAtHour, cfg.SessionResetIdleMinutes)
	p.SetExecutorMaxRetries(cfg.ExecutorMaxRetries)

	mask := eventpipeline.NewPrivacyMask(cfg.PrivacySalt, defaultDenyFields, defaultHashFields)
	pipeline := eventpipeline.New(cfg.EventQueueSize, mask, store, vector,
		cfg.FlushBatchSize, time.Duration(cfg.FlushMaxAgeSecs)*time.Second,
		time.Duration(cfg.SessionIdleMins)*time.Minute, logging.NewComponentLogger("eventpipeline"))

	patternCfg := pattern.ConfigFromRuntime(*cfg)
	engine := pattern.New(store, vector, proposalLLM, patternCfg, pattern.DefaultTemplates, logging.NewComponentLogger("pattern"))
	pipeline.OnFlush(func(ctx context.Context) {
		if _, err := engine.Tick(ctx); err != nil {
			logger.Warn("core: post-flush pattern tick failed: %v", err)
		}
	})

	quality := qualitygate.New(store, 20, 0.3, logging.NewComponentLogger("qualitygate"))

	return &Core{
		Cfg: cfg, Logger: logger,
		Store: store, Vector: vector,
		Sensor: sens, Executor: executor, Gate: gate, Verifier: v, Approver: approver, LLM: anthropic,
		Planner: p, Pipeline: pipeline, Pattern: engine, Quality: quality,
	}, nil
}

var defaultDenyFields = []string{"password", "ssn", "credit_card"}
var defaultHashFields = []string{"email", "username"}

// RunBackground launches the Event Pipeline consumer and the Pattern
// Engine's cron tick as panic-guarded goroutines (§5 scheduling model),
// returning once both have been started. It does not block; cancel ctx to
// stop both.
func (c *Core) RunBackground(ctx context.Context) {
	async.Go(c.Logger, "eventpipeline.Run", func() {
		if err := c.Pipeline.Run(ctx); err != nil && ctx.Err() == nil {
			c.Logger.Error("core: event pipeline stopped: %v", err)
		}
	})
	async.Go(c.Logger, "pattern.Run", func() {
		if err := c.Pattern.Run(ctx, c.Cfg.PatternTickCron); err != nil && ctx.Err() == nil {
			c.Logger.Error("core: pattern engine tick loop stopped: %v", err)
		}
	})
}

// Close releases the storage handle. The vector index has no separate
// handle to close (chromem-go persists synchronously).
func (c *Core) Close() error {
	return c.Store.Close()
}

// noOpLLM is the capability record used when no model credential is
// configured: every call fails with a remediation-bearing error rather than
// panicking on a nil *llmclient.Client (§7's "one concrete next step").
type noOpLLM struct{}

func (noOpLLM) NextAction(ctx context.Context, req planner.PlanRequest) (string, error) {
	return "", fmt.Errorf("no plan model configured: set ANTHROPIC_API_KEY to run goals")
}

func (noOpLLM) Ask(ctx context.Context, question string) (string, error) {
	return "", fmt.Errorf("no vision model configured: set ANTHROPIC_API_KEY to run visual verification")
}

func (noOpLLM) GenerateProposal(ctx context.Context, p coreapi.DetectedPattern) (string, string, string, error) {
	return "", "", "", fmt.Errorf("no proposal model configured: set ANTHROPIC_API_KEY for LLM-generated recommendations")
}
