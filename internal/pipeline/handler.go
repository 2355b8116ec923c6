package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/shared/server/middleware"
	"resume-pdf-api/internal/shared/server/respond"
	"resume-pdf-api/internal/usage"
)

// Handler exposes the generate endpoints.
type Handler struct {
	Coord *Coordinator
}

// NewHandler constructs a Handler.
func NewHandler(coord *Coordinator) *Handler {
	return &Handler{Coord: coord}
}

// RegisterRoutes attaches generate routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generate/:templateSlug", h.generate)
	rg.POST("/bulk-generate/:templateSlug", h.bulkGenerate)
}

type bulkRequest struct {
	Items []Item `json:"items"`
}

func (h *Handler) generate(c *gin.Context) {
	slug := c.Param("templateSlug")
	c.Set("templateSlug", slug)

	var req Item
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", msgResumeDataRequired, nil)
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Coord.SubmitSingle(ctx, middleware.TenantIDFromContext(c), slug, req)
	if err != nil {
		writeSubmitError(c, err)
		return
	}
	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"message": "PDF generation started",
		"jobId":   job.ID,
		"status":  job.Status,
	})
}

func (h *Handler) bulkGenerate(c *gin.Context) {
	slug := c.Param("templateSlug")
	c.Set("templateSlug", slug)

	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", msgItemsRequired, nil)
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res, err := h.Coord.SubmitBulk(ctx, middleware.TenantIDFromContext(c), slug, req.Items)
	if err != nil {
		writeSubmitError(c, err)
		return
	}
	c.Set("bulkJobId", res.BulkJobID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"message":   "Bulk PDF generation started",
		"bulkJobId": res.BulkJobID,
		"count":     res.Count,
	})
}

func writeSubmitError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		respond.Error(c, http.StatusBadRequest, "validation_error", ve.Message, ve.Details)
	case IsNotFound(err):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, "limit_reached", "Monthly PDF limit reached. Upgrade your plan.", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to start generation", nil)
	}
}
