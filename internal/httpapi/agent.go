package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"surf-core/internal/coreapi"
	"surf-core/internal/metrics"
	"surf-core/internal/planner"
)

// agentSession is the server-held state for one natural-language goal
// lifecycle (§6: "session -> plan -> run -> verify -> approval"). The
// Planner's own step loop already does the real observe/plan/act/verify
// work per iteration (§4.5); this struct only remembers enough between HTTP
// calls to resume a halted run.
type agentSession struct {
	mu         sync.Mutex
	Goal       string
	Plan       coreapi.Plan
	ResumeFrom int
	LastResult *planner.RunResult
}

var (
	sessionsMu sync.Mutex
	sessions   = map[string]*agentSession{}

	currentGoalMu sync.Mutex
	currentGoal   *currentGoalState
)

type currentGoalState struct {
	SessionID string              `json:"session_id"`
	Goal      string              `json:"goal"`
	Status    string              `json:"status"`
	StartedAt time.Time           `json:"started_at"`
	Result    *planner.RunResult  `json:"result,omitempty"`
}

// agentIntent handles POST /api/agent/intent {goal}: opens a session for a
// natural-language goal and returns its id.
func (h *handlers) agentIntent(ctx *gin.Context) {
	var req struct {
		Goal string `json:"goal" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	id := uuid.NewString()
	sessionsMu.Lock()
	sessions[id] = &agentSession{Goal: req.Goal}
	sessionsMu.Unlock()
	ctx.JSON(200, gin.H{"session_id": id})
}

// agentPlan handles POST /api/agent/plan {session_id}: produces a
// single-step declarative Plan wrapping the goal. The Planner's own step
// loop is what actually decides concrete Actions at execute time against a
// live screen (§4.5); this endpoint exists to satisfy the documented
// lifecycle and surface something inspectable before execution starts.
func (h *handlers) agentPlan(ctx *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	sess, ok := getSession(req.SessionID)
	if !ok {
		ctx.JSON(404, gin.H{"error": "session not found"})
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Plan = coreapi.Plan{
		PlanID: uuid.NewString(),
		Intent: sess.Goal,
		Steps: []coreapi.PlanStep{
			{ID: uuid.NewString(), Type: coreapi.StepNavigate, Description: sess.Goal},
		},
		CreatedAt: time.Now(),
	}
	ctx.JSON(200, sess.Plan)
}

// agentExecute handles POST /api/agent/execute {session_id, resume_from?}:
// runs the Planner to completion or halt, blocking for the caller (§6
// execute response shape).
func (h *handlers) agentExecute(ctx *gin.Context) {
	var req struct {
		SessionID  string `json:"session_id" binding:"required"`
		ResumeFrom int    `json:"resume_from"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	sess, ok := getSession(req.SessionID)
	if !ok {
		ctx.JSON(404, gin.H{"error": "session not found"})
		return
	}

	result, err := h.runGoal(ctx, sess.Goal, planner.RunOptions{
		MaxSteps:   h.core.Cfg.MaxSteps,
		MaxReplans: h.core.Cfg.ExecutorMaxReplans,
		ResumeFrom: req.ResumeFrom,
		SessionID:  req.SessionID,
	})
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}

	sess.mu.Lock()
	sess.ResumeFrom = result.ResumeFrom
	sess.LastResult = result
	sess.mu.Unlock()

	ctx.JSON(200, executeResponse(result))
}

type executeResponseBody struct {
	Status      planner.RunStatus    `json:"status"`
	Logs        []string             `json:"logs"`
	Approval    *planner.ApprovalRef `json:"approval,omitempty"`
	ManualSteps []string             `json:"manual_steps,omitempty"`
	ResumeFrom  int                  `json:"resume_from,omitempty"`
}

func executeResponse(r *planner.RunResult) executeResponseBody {
	return executeResponseBody{
		Status:      r.Status,
		Logs:        r.Logs,
		Approval:    r.Approval,
		ManualSteps: r.ManualSteps,
		ResumeFrom:  r.ResumeFrom,
	}
}

// agentVerify handles POST /api/agent/verify {session_id, check}: runs one
// structural or UI-structural verification ad hoc, outside a goal run.
func (h *handlers) agentVerify(ctx *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Check     string `json:"check" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	res, err := h.core.Verifier.VerifyStructural(ctx, req.Check)
	if err != nil {
		ctx.JSON(200, gin.H{"passed": false, "detail": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"passed": res.Passed, "detail": res.Detail})
}

// agentApprove handles POST /api/agent/approve {session_id, approval_id,
// decision}: resolves a pending approval and resumes the halted run.
func (h *handlers) agentApprove(ctx *gin.Context) {
	var req struct {
		SessionID  string               `json:"session_id" binding:"required"`
		ApprovalID string               `json:"approval_id" binding:"required"`
		Decision   coreapi.ExecDecision `json:"decision" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	sess, ok := getSession(req.SessionID)
	if !ok {
		ctx.JSON(404, gin.H{"error": "session not found"})
		return
	}

	decision, err := h.core.Gate.ApplyDecision(ctx, req.ApprovalID, req.Decision)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if !decision.Allowed {
		ctx.JSON(200, gin.H{"allowed": false, "reason": decision.Reason})
		return
	}

	sess.mu.Lock()
	resumeFrom := sess.ResumeFrom
	sess.mu.Unlock()

	result, err := h.runGoal(ctx, sess.Goal, planner.RunOptions{
		MaxSteps:   h.core.Cfg.MaxSteps,
		MaxReplans: h.core.Cfg.ExecutorMaxReplans,
		ResumeFrom: resumeFrom,
		SessionID:  req.SessionID,
	})
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	sess.mu.Lock()
	sess.ResumeFrom = result.ResumeFrom
	sess.LastResult = result
	sess.mu.Unlock()
	ctx.JSON(200, executeResponse(result))
}

// agentGoal handles POST /api/agent/goal {goal}: fire-and-forget execution
// (§6). It returns immediately with a session id; progress is polled via
// GET /api/agent/goal/current or streamed via GET /api/agent/goal/stream.
func (h *handlers) agentGoal(ctx *gin.Context) {
	var req struct {
		Goal string `json:"goal" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	sessionsMu.Lock()
	sessions[id] = &agentSession{Goal: req.Goal}
	sessionsMu.Unlock()

	currentGoalMu.Lock()
	currentGoal = &currentGoalState{SessionID: id, Goal: req.Goal, Status: "running", StartedAt: time.Now()}
	currentGoalMu.Unlock()

	go func() {
		result, err := h.runGoal(context.Background(), req.Goal, planner.RunOptions{
			MaxSteps:   h.core.Cfg.MaxSteps,
			MaxReplans: h.core.Cfg.ExecutorMaxReplans,
			SessionID:  id,
		})
		currentGoalMu.Lock()
		defer currentGoalMu.Unlock()
		if currentGoal == nil || currentGoal.SessionID != id {
			return
		}
		if err != nil {
			currentGoal.Status = "error"
			return
		}
		currentGoal.Status = string(result.Status)
		currentGoal.Result = result
		publishGoalEvent(id, string(result.Status))
	}()

	ctx.JSON(202, gin.H{"session_id": id, "status": "running"})
}

// agentGoalCurrent handles GET /api/agent/goal/current.
func (h *handlers) agentGoalCurrent(ctx *gin.Context) {
	currentGoalMu.Lock()
	defer currentGoalMu.Unlock()
	if currentGoal == nil {
		ctx.JSON(200, gin.H{"running": false})
		return
	}
	ctx.JSON(200, currentGoal)
}

// runGoal unlocks the Write-Lock for user-initiated goals (§4.3: "released
// ... implicitly for user-initiated goals") then drives the Planner and
// records goal-run latency and outcome metrics.
func (h *handlers) runGoal(ctx context.Context, goal string, opts planner.RunOptions) (*planner.RunResult, error) {
	h.core.Gate.Unlock()
	start := time.Now()
	result, err := h.core.Planner.Run(ctx, goal, opts)
	if result != nil {
		metrics.PlannerRunsTotal.WithLabelValues(string(result.Status)).Inc()
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.PlannerStepDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	return result, err
}

func getSession(id string) (*agentSession, bool) {
	sessionsMu.Lock()
	defer sessionsMu.Unlock()
	s, ok := sessions[id]
	return s, ok
}
