package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/pipeline"
	"resume-pdf-api/internal/services/health"
	"resume-pdf-api/internal/shared/config"
	"resume-pdf-api/internal/shared/metrics"
	"resume-pdf-api/internal/shared/server/middleware"
	"resume-pdf-api/internal/shared/server/respond"
	"resume-pdf-api/internal/templates"
	"resume-pdf-api/internal/usage"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Tenants         middleware.TenantResolver
	Health          *health.Service
	PipelineHandler *pipeline.Handler
	JobsHandler     *jobs.Handler
	TemplateHandler *templates.Handler
	UsageHandler    *usage.Handler
	// FilesDir serves locally stored PDFs under /files when set.
	FilesDir string
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	r.GET("/metrics", metrics.Handler())
	if strings.TrimSpace(deps.FilesDir) != "" {
		r.Static("/files", deps.FilesDir)
	}

	v1 := r.Group("/v1")
	v1.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context(), c.Query("deep") == "true")
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	api := v1.Group("")
	if deps.Tenants != nil {
		api.Use(middleware.APIKeyAuth(deps.Tenants))
	}
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor:     rateLimitGroup,
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": middleware.PerMinute(deps.Config.RateLimitPerMinute),
			"POLLING": middleware.PerMinute(deps.Config.RateLimitPerMinute * pollingMultiplier),
		},
	}))

	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(api)
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api)
	}
	if deps.TemplateHandler != nil {
		deps.TemplateHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
		if deps.Config.Env == "dev" {
			deps.UsageHandler.RegisterDevRoutes(api.Group("/dev"))
		}
	}

	return r
}

// Status polling gets a larger budget than submissions.
const pollingMultiplier = 5

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet && strings.HasPrefix(c.FullPath(), "/v1/job") {
		return "POLLING"
	}
	return "DEFAULT"
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
