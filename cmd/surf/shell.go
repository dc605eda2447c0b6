package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"surf-core/internal/config"
	"surf-core/internal/core"
	"surf-core/internal/coreapi"
	"surf-core/internal/planner"
)

func newShellCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive operator shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runShell(cfg)
		},
	}
}

func cmdContext() context.Context {
	return context.Background()
}

func plannerOptions(cfg *config.RuntimeConfig) planner.RunOptions {
	return planner.RunOptions{MaxSteps: cfg.MaxSteps, MaxReplans: cfg.ExecutorMaxReplans}
}

func printRunResult(r *planner.RunResult) {
	switch r.Status {
	case planner.StatusCompleted:
		fmt.Println(green("done:"), r.ReplyText)
	case planner.StatusApprovalRequired:
		fmt.Println(yellow("approval required:"), r.Approval.Reason, "(approval_id="+r.Approval.ApprovalID+")")
	case planner.StatusManualRequired:
		fmt.Println(yellow("manual steps required:"))
		for _, s := range r.ManualSteps {
			fmt.Println("  -", s)
		}
	default:
		fmt.Println(red(string(r.Status)+":"), strings.Join(r.Logs, "\n"))
	}
}

const shellHelp = `Commands:
  help                   show this message
  snap                   capture the screen and print a UI tree summary
  click <id>             click the UI element with the given stable_ref_id
  type <text>            type text into the focused element
  unlock                 release the Write-Lock
  status                 show core health (queue depth, lock state)
  recommendations        list pending automation proposals
  approve <id>           approve a pending recommendation or exec approval
  reject <id>            reject a pending recommendation or exec approval
  exec <cmd>             run a shell command through the Policy gate
  routine                list recent agent steps (routine history)
  recommend               run the Pattern Engine once and list new proposals
  analyze_patterns       run pattern analysis only, without recommending
  quality                show the latest quality score
  exit                   leave the shell
  <anything else>        run as a natural-language goal through the Planner`

// runShell is the interactive operator shell from §6: a thin line-oriented
// REPL, not a full-screen TUI (SPEC_FULL explicitly keeps the CLI a thin
// shell rather than adopting bubbletea).
func runShell(cfg *config.RuntimeConfig) error {
	c, err := core.Build(cfg, core.BuildOptions{Interactive: true})
	if err != nil {
		return fmt.Errorf("build core: %w", err)
	}
	defer c.Close()

	ctx := cmdContext()
	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	c.RunBackground(bgCtx)

	fmt.Println(bold("surf interactive shell") + " — type 'help' for commands, 'exit' to quit.")
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print(cyan("surf> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil // EOF: quit cleanly
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmdName, rest, _ := strings.Cut(line, " ")
		switch cmdName {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println(shellHelp)
		case "snap":
			shellSnap(ctx, c)
		case "click":
			shellClick(ctx, c, rest)
		case "type":
			shellType(ctx, c, rest)
		case "unlock":
			c.Gate.Unlock()
			fmt.Println(green("write-lock released"))
		case "status":
			shellStatus(c)
		case "recommendations":
			shellRecommendations(ctx, c)
		case "approve":
			shellResolve(ctx, c, rest, true)
		case "reject":
			shellResolve(ctx, c, rest, false)
		case "exec":
			shellExec(ctx, c, rest)
		case "routine":
			shellRoutine(ctx, c)
		case "recommend":
			shellRecommend(ctx, c)
		case "analyze_patterns":
			shellAnalyzePatterns(ctx, c)
		case "quality":
			shellQuality(ctx, c)
		default:
			result, err := c.Planner.Run(ctx, line, plannerOptions(cfg))
			if err != nil {
				fmt.Println(red("error:"), err)
				continue
			}
			printRunResult(result)
		}
	}
}

func shellSnap(ctx context.Context, c *core.Core) {
	tree, err := c.Sensor.SnapshotUI(ctx, nil)
	if err != nil {
		fmt.Println(red("snap failed:"), err)
		return
	}
	for _, n := range tree.Flatten() {
		fmt.Printf("  [%s] %s %q\n", n.StableRefID, n.Role, n.Name)
	}
}

func shellClick(ctx context.Context, c *core.Core, ref string) {
	if ref == "" {
		fmt.Println(red("usage: click <id>"))
		return
	}
	if _, err := c.Executor.Execute(ctx, coreapi.Action{Type: coreapi.ActionClickRef, Ref: ref}); err != nil {
		fmt.Println(red("click failed:"), err)
		return
	}
	fmt.Println(green("clicked"), ref)
}

func shellType(ctx context.Context, c *core.Core, text string) {
	if text == "" {
		fmt.Println(red("usage: type <text>"))
		return
	}
	if _, err := c.Executor.Execute(ctx, coreapi.Action{Type: coreapi.ActionTypeText, Text: text}); err != nil {
		fmt.Println(red("type failed:"), err)
		return
	}
	fmt.Println(green("typed"))
}

func shellStatus(c *core.Core) {
	fmt.Printf("queue_depth=%d write_lock=%v\n", c.Pipeline.QueueDepth(), c.Gate.IsLocked())
}

func shellRecommendations(ctx context.Context, c *core.Core) {
	recs, err := c.Store.RecommendationsByStatus(ctx, coreapi.ProposalPending)
	if err != nil {
		fmt.Println(red("failed:"), err)
		return
	}
	if len(recs) == 0 {
		fmt.Println("no pending recommendations")
		return
	}
	for _, r := range recs {
		fmt.Printf("  %s  %.2f  %s\n", r.ID, r.Confidence, r.Title)
	}
}

func shellResolve(ctx context.Context, c *core.Core, id string, approve bool) {
	if id == "" {
		fmt.Println(red("usage: approve|reject <id>"))
		return
	}
	if rec, found, err := c.Store.GetRecommendation(ctx, id); err == nil && found {
		status := coreapi.ProposalRejected
		if approve {
			status = coreapi.ProposalApproved
		}
		if err := c.Store.UpdateRecommendationStatus(ctx, rec.ID, status); err != nil {
			fmt.Println(red("failed:"), err)
			return
		}
		fmt.Println(green("recommendation "+string(status)), id)
		return
	}

	decision := coreapi.DecisionDeny
	if approve {
		decision = coreapi.DecisionAllowOnce
	}
	result, err := c.Gate.ApplyDecision(ctx, id, decision)
	if err != nil {
		fmt.Println(red("failed:"), err)
		return
	}
	fmt.Printf("exec approval resolved: allowed=%v reason=%s\n", result.Allowed, result.Reason)
}

func shellExec(ctx context.Context, c *core.Core, command string) {
	if command == "" {
		fmt.Println(red("usage: exec <cmd>"))
		return
	}
	decision, err := c.Gate.CheckShell(ctx, command, "")
	if err != nil {
		fmt.Println(red("policy check failed:"), err)
		return
	}
	if !decision.Allowed {
		fmt.Println(yellow("blocked or pending approval:"), decision.Reason)
		return
	}
	res, err := c.Executor.Execute(ctx, coreapi.Action{Type: coreapi.ActionShell, Cmd: command})
	if err != nil {
		fmt.Println(red("exec failed:"), err)
		return
	}
	fmt.Println(green("exec ok:"), res.Output)
}

func shellRoutine(ctx context.Context, c *core.Core) {
	steps, err := c.Store.RecentAgentSteps(ctx, 20)
	if err != nil {
		fmt.Println(red("failed:"), err)
		return
	}
	for _, s := range steps {
		fmt.Printf("  [%s] %s %s %s\n", s.At.Format("15:04:05"), s.ActionType, s.ResultStatus, s.Observations)
	}
}

func shellRecommend(ctx context.Context, c *core.Core) {
	patterns, err := c.Pattern.Analyze(ctx)
	if err != nil {
		fmt.Println(red("analyze failed:"), err)
		return
	}
	recs, err := c.Pattern.Recommend(ctx, patterns)
	if err != nil {
		fmt.Println(red("recommend failed:"), err)
		return
	}
	if len(recs) == 0 {
		fmt.Println("no new recommendations")
		return
	}
	for _, r := range recs {
		fmt.Printf("  %s  %.2f  %s\n", r.ID, r.Confidence, r.Title)
	}
}

func shellAnalyzePatterns(ctx context.Context, c *core.Core) {
	patterns, err := c.Pattern.Analyze(ctx)
	if err != nil {
		fmt.Println(red("analyze failed:"), err)
		return
	}
	if len(patterns) == 0 {
		fmt.Println("no patterns detected")
		return
	}
	for _, p := range patterns {
		fmt.Printf("  %s  %s  occurrences=%d\n", p.PatternID, p.Type, p.Occurrences)
	}
}

func shellQuality(ctx context.Context, c *core.Core) {
	score, found, err := c.Quality.Latest(ctx)
	if err != nil {
		fmt.Println(red("failed:"), err)
		return
	}
	if !found {
		fmt.Println("no quality score computed yet")
		return
	}
	fmt.Printf("score=%.2f basis=%s\n", score.Score, score.Basis)
}
