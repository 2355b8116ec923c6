package jobs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/ats"
	"resume-pdf-api/internal/shared/server/middleware"
	"resume-pdf-api/internal/shared/server/respond"
)

// Reader is the read side of Repo used by the status endpoints.
type Reader interface {
	GetByID(ctx context.Context, jobID, tenantID string) (Job, error)
	ListByBulkID(ctx context.Context, bulkJobID, tenantID string) ([]Job, error)
}

// Handler serves job and bulk batch status.
type Handler struct {
	Repo Reader
}

// NewHandler constructs a Handler.
func NewHandler(repo Reader) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches job status routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/job/:id", h.get)
	rg.GET("/jobs/bulk/:bulkJobId", h.bulk)
}

// Response is the public shape of a job.
type Response struct {
	JobID        string      `json:"jobId"`
	Status       string      `json:"status"`
	PdfURL       *string     `json:"pdfUrl"`
	AtsScore     *ats.Result `json:"atsScore"`
	TemplateSlug string      `json:"templateSlug"`
	BulkJobID    *string     `json:"bulkJobId"`
	Error        *string     `json:"error"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// BulkResponse is the public shape of a bulk batch.
type BulkResponse struct {
	BulkJobID string      `json:"bulkJobId"`
	Summary   BulkSummary `json:"summary"`
	Jobs      []Response  `json:"jobs"`
}

func (h *Handler) get(c *gin.Context) {
	tenantID := middleware.TenantIDFromContext(c)
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	job, err := h.Repo.GetByID(c.Request.Context(), jobID, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Job not found.", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to load job", nil)
		return
	}
	respond.OK(c, ToResponse(job))
}

func (h *Handler) bulk(c *gin.Context) {
	tenantID := middleware.TenantIDFromContext(c)
	bulkJobID := c.Param("bulkJobId")
	c.Set("bulkJobId", bulkJobID)

	list, err := h.Repo.ListByBulkID(c.Request.Context(), bulkJobID, tenantID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to load bulk jobs", nil)
		return
	}
	out := BulkResponse{
		BulkJobID: bulkJobID,
		Summary:   Summarize(list),
		Jobs:      make([]Response, 0, len(list)),
	}
	for _, j := range list {
		out.Jobs = append(out.Jobs, ToResponse(j))
	}
	respond.OK(c, out)
}

// ToResponse converts a Job to its public shape.
func ToResponse(j Job) Response {
	return Response{
		JobID:        j.ID,
		Status:       j.Status,
		PdfURL:       j.PdfURL,
		AtsScore:     j.AtsScore,
		TemplateSlug: j.TemplateSlug,
		BulkJobID:    j.BulkJobID,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}
