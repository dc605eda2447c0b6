package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"surf-core/internal/coreapi"
)

// listExecApprovals handles GET /api/exec-approvals.
func (h *handlers) listExecApprovals(ctx *gin.Context) {
	approvals, err := h.core.Store.PendingExecApprovals(ctx)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, approvals)
}

// createExecApproval handles POST /api/exec-approvals {command, cwd?}: the
// API-path equivalent of a shell Action hitting the approval-required gate,
// for callers (desktop UI) that want to pre-seed an approval without running
// a goal.
func (h *handlers) createExecApproval(ctx *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
		Cwd     string `json:"cwd"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	a := coreapi.ExecApproval{
		ID:        uuid.NewString(),
		Command:   req.Command,
		Cwd:       req.Cwd,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
		Status:    coreapi.ExecApprovalPending,
	}
	if err := h.core.Store.InsertExecApproval(ctx, a); err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(201, a)
}

// resolveExecApproval handles POST /api/exec-approvals/:id/{approve|reject}
// with body {decision}.
func (h *handlers) resolveExecApproval(ctx *gin.Context) {
	id := ctx.Param("id")
	action := ctx.Param("action")
	if action != "approve" && action != "reject" {
		ctx.JSON(400, gin.H{"error": "unknown action " + action})
		return
	}

	var req struct {
		Decision coreapi.ExecDecision `json:"decision"`
	}
	_ = ctx.ShouldBindJSON(&req)
	decision := req.Decision
	if decision == "" {
		if action == "approve" {
			decision = coreapi.DecisionAllowOnce
		} else {
			decision = coreapi.DecisionDeny
		}
	}

	result, err := h.core.Gate.ApplyDecision(ctx, id, decision)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, result)
}

// listAllowlist handles GET /api/exec-allowlist.
func (h *handlers) listAllowlist(ctx *gin.Context) {
	entries, err := h.core.Store.ListAllowlist(ctx)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, entries)
}

// createAllowlistEntry handles POST /api/exec-allowlist {pattern, cwd?}.
func (h *handlers) createAllowlistEntry(ctx *gin.Context) {
	var req struct {
		Pattern string `json:"pattern" binding:"required"`
		Cwd     string `json:"cwd"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	entry := coreapi.ExecAllowlistEntry{ID: uuid.NewString(), Pattern: req.Pattern, Cwd: req.Cwd, CreatedAt: time.Now()}
	if err := h.core.Store.InsertAllowlistEntry(ctx, entry); err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(201, entry)
}

// deleteAllowlistEntry handles DELETE /api/exec-allowlist/:id.
func (h *handlers) deleteAllowlistEntry(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.core.Store.RemoveAllowlistEntry(ctx, id); err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(204, nil)
}
