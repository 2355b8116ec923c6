package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/shared/server/respond"
	"resume-pdf-api/internal/shared/telemetry"
	"resume-pdf-api/internal/shared/util"
)

const (
	tenantIDKey   = "tenantId"
	apiKeyHashKey = "apiKeyHash"

	// APIKeyHeader carries the tenant's API key.
	APIKeyHeader = "X-Api-Key"
)

// TenantResolver maps an API key to the tenant that owns it.
// ok is false when the key is unknown or revoked.
type TenantResolver interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (tenantID string, ok bool, err error)
}

// APIKeyAuth authenticates requests by API key and stores the tenant id in context.
func APIKeyAuth(resolver TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		apiKey := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if apiKey == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing API key. Provide it via the x-api-key header.", nil)
			return
		}

		tenantID, ok, err := resolver.ResolveAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			telemetry.Error("auth.resolve_failed", map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      err.Error(),
			})
			respond.Error(c, http.StatusInternalServerError, "internal", "Unable to verify API key", nil)
			return
		}
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid or revoked API key.", nil)
			return
		}

		c.Set(tenantIDKey, tenantID)
		c.Set(apiKeyHashKey, util.HashKey(apiKey))
		c.Next()
	}
}

// TenantIDFromContext fetches the tenant ID set by the auth middleware.
func TenantIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(tenantIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// SetTenantID stores a tenant ID in context, for callers that authenticate elsewhere.
func SetTenantID(c *gin.Context, tenantID string) {
	c.Set(tenantIDKey, tenantID)
}

func apiKeyHashFromContext(c *gin.Context) string {
	val, _ := c.Get(apiKeyHashKey)
	if h, ok := val.(string); ok {
		return h
	}
	return ""
}
