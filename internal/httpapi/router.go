// Package httpapi is the localhost-only HTTP surface the Core exposes to
// the (out-of-scope) desktop UI and other external collaborators (§6). It
// is a thin translation layer: every handler delegates to a core.Core
// component and never carries business logic of its own.
package httpapi

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surf-core/internal/core"
	"surf-core/internal/logging"
)

// NewRouter builds the gin.Engine with every route from §6, CORS-restricted
// to the configured dev origins (localhost-only by default).
func NewRouter(c *core.Core) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logging.NewComponentLogger("httpapi")))

	origins := splitOrigins(c.Cfg.CORSOrigins)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
	}))

	h := &handlers{core: c}

	r.GET("/api/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/events", h.postEvents)
	r.GET("/api/status", h.status)

	r.GET("/api/recommendations", h.listRecommendations)
	r.POST("/api/recommendations/:id/:action", h.resolveRecommendation)

	agent := r.Group("/api/agent")
	{
		agent.POST("/intent", h.agentIntent)
		agent.POST("/plan", h.agentPlan)
		agent.POST("/execute", h.agentExecute)
		agent.POST("/verify", h.agentVerify)
		agent.POST("/approve", h.agentApprove)
		agent.POST("/goal", h.agentGoal)
		agent.GET("/goal/current", h.agentGoalCurrent)
		agent.GET("/goal/stream", h.agentGoalStream)
	}

	r.GET("/api/exec-approvals", h.listExecApprovals)
	r.POST("/api/exec-approvals", h.createExecApproval)
	r.POST("/api/exec-approvals/:id/:action", h.resolveExecApproval)

	r.GET("/api/exec-allowlist", h.listAllowlist)
	r.POST("/api/exec-allowlist", h.createAllowlistEntry)
	r.DELETE("/api/exec-allowlist/:id", h.deleteAllowlistEntry)

	r.POST("/api/verify/:kind", h.verifyKind)
	r.POST("/api/release/baseline", h.releaseBaseline)
	r.POST("/api/release/gate", h.releaseGate)

	r.POST("/api/quality/score", h.qualityScore)
	r.GET("/api/quality/latest", h.qualityLatest)

	return r
}

type handlers struct {
	core *core.Core
}

func splitOrigins(csv string) []string {
	var out []string
	for _, o := range strings.Split(csv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		logger.Debug("%s %s -> %d", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status())
	}
}

func (h *handlers) health(ctx *gin.Context) {
	ctx.String(200, "ok")
}
