package usage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/shared/server/middleware"
	"resume-pdf-api/internal/shared/server/respond"
)

// CapSource returns a tenant's monthly PDF cap.
type CapSource interface {
	MonthlyCap(ctx context.Context, tenantID string) (int, error)
}

// Handler exposes usage endpoints.
type Handler struct {
	Svc  *Service
	Caps CapSource
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, caps CapSource) *Handler {
	return &Handler{Svc: svc, Caps: caps}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

// RegisterDevRoutes attaches dev-only usage routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage/reset", h.resetUsage)
}

func (h *Handler) getUsage(c *gin.Context) {
	tenantID := middleware.TenantIDFromContext(c)
	limit, err := h.Caps.MonthlyCap(c.Request.Context(), tenantID)
	if err != nil {
		writeUsageError(c, err, "failed to fetch usage")
		return
	}
	u, err := h.Svc.Get(c.Request.Context(), tenantID, limit)
	if err != nil {
		writeUsageError(c, err, "failed to fetch usage")
		return
	}
	respond.OK(c, u)
}

func (h *Handler) resetUsage(c *gin.Context) {
	tenantID := middleware.TenantIDFromContext(c)
	u, err := h.Svc.Reset(c.Request.Context(), tenantID)
	if err != nil {
		writeUsageError(c, err, "failed to reset usage")
		return
	}
	respond.OK(c, u)
}

func writeUsageError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}
