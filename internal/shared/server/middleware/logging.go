package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		jobID, _ := c.Get("jobId")
		bulkJobID, _ := c.Get("bulkJobId")
		templateSlug, _ := c.Get("templateSlug")

		telemetry.Info("request.complete", map[string]any{
			"request_id":    reqID,
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        status,
			"duration_ms":   float64(latency.Microseconds()) / 1000.0,
			"tenant_id":     TenantIDFromContext(c),
			"job_id":        jobID,
			"bulk_job_id":   bulkJobID,
			"template_slug": templateSlug,
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
		})
	}
}
