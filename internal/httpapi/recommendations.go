package httpapi

import (
	"github.com/gin-gonic/gin"

	"surf-core/internal/coreapi"
)

// listRecommendations handles GET /api/recommendations?status=pending|all|rejected|...
func (h *handlers) listRecommendations(ctx *gin.Context) {
	status := ctx.DefaultQuery("status", "pending")
	if status == "all" {
		var out []coreapi.AutomationProposal
		for _, s := range []coreapi.ProposalStatus{
			coreapi.ProposalPending, coreapi.ProposalApproved, coreapi.ProposalRejected,
			coreapi.ProposalLater, coreapi.ProposalFailed,
		} {
			rs, err := h.core.Store.RecommendationsByStatus(ctx, s)
			if err != nil {
				ctx.JSON(500, gin.H{"error": err.Error()})
				return
			}
			out = append(out, rs...)
		}
		ctx.JSON(200, out)
		return
	}

	rs, err := h.core.Store.RecommendationsByStatus(ctx, coreapi.ProposalStatus(status))
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, rs)
}

// resolveRecommendation handles POST /api/recommendations/:id/{approve|reject|later|restore}.
func (h *handlers) resolveRecommendation(ctx *gin.Context) {
	id := ctx.Param("id")
	action := ctx.Param("action")

	var newStatus coreapi.ProposalStatus
	switch action {
	case "approve":
		newStatus = coreapi.ProposalApproved
	case "reject":
		newStatus = coreapi.ProposalRejected
	case "later":
		newStatus = coreapi.ProposalLater
	case "restore":
		newStatus = coreapi.ProposalPending
	default:
		ctx.JSON(400, gin.H{"error": "unknown action " + action})
		return
	}

	if _, found, err := h.core.Store.GetRecommendation(ctx, id); err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	} else if !found {
		ctx.JSON(404, gin.H{"error": "recommendation not found"})
		return
	}

	if err := h.core.Store.UpdateRecommendationStatus(ctx, id, newStatus); err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"id": id, "status": newStatus})
}
