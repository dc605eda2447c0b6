package httpapi

import (
	"github.com/gin-gonic/gin"

	"surf-core/internal/coreapi"
)

// verifyKind handles POST /api/verify/{runtime|visual|semantic|performance|consistency}.
// runtime/performance/consistency map onto structural checks (the original
// implementation's "release_gate" subsystems, §9 "quality score / release
// baseline / consistency-check endpoints"); semantic and visual run the
// Verifier's visual-question path.
func (h *handlers) verifyKind(ctx *gin.Context) {
	kind := ctx.Param("kind")
	var req struct {
		Check    string `json:"check"`
		Question string `json:"question"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}

	switch kind {
	case "visual", "semantic":
		if req.Question == "" {
			ctx.JSON(400, gin.H{"error": "question is required for " + kind + " verification"})
			return
		}
		res, err := h.core.Verifier.VerifyVisual(ctx, req.Question)
		if err != nil {
			ctx.JSON(200, gin.H{"passed": false, "detail": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"passed": res.Passed, "detail": res.Detail})
	case "runtime", "performance", "consistency":
		if req.Check == "" {
			ctx.JSON(400, gin.H{"error": "check is required for " + kind + " verification"})
			return
		}
		res, err := h.core.Verifier.VerifyStructural(ctx, req.Check)
		if err != nil {
			ctx.JSON(200, gin.H{"passed": false, "detail": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"passed": res.Passed, "detail": res.Detail})
	default:
		ctx.JSON(404, gin.H{"error": "unknown verify kind " + kind})
	}
}

// releaseBaseline handles POST /api/release/baseline {snapshot_json?}.
func (h *handlers) releaseBaseline(ctx *gin.Context) {
	var req struct {
		SnapshotJSON string `json:"snapshot_json"`
	}
	_ = ctx.ShouldBindJSON(&req)
	baseline, err := h.core.Quality.BuildBaseline(ctx, req.SnapshotJSON)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, baseline)
}

// releaseGate handles POST /api/release/gate {snapshot_json?}.
func (h *handlers) releaseGate(ctx *gin.Context) {
	var req struct {
		SnapshotJSON string `json:"snapshot_json"`
	}
	_ = ctx.ShouldBindJSON(&req)
	result, err := h.core.Quality.Gate(ctx, req.SnapshotJSON)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, result)
}

// qualityScore handles POST /api/quality/score.
func (h *handlers) qualityScore(ctx *gin.Context) {
	score, err := h.core.Quality.Score(ctx)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, score)
}

// qualityLatest handles GET /api/quality/latest.
func (h *handlers) qualityLatest(ctx *gin.Context) {
	score, found, err := h.core.Quality.Latest(ctx)
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if !found {
		ctx.JSON(404, gin.H{"error": "no quality score computed yet"})
		return
	}
	ctx.JSON(200, score)
}

var _ = coreapi.Action{} // coreapi import kept for handlers sharing this package's types
