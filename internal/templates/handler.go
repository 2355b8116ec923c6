package templates

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-pdf-api/internal/shared/server/middleware"
	"resume-pdf-api/internal/shared/server/respond"
)

// Handler exposes template management endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches template routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/templates", h.create)
}

type createRequest struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	HTML        string   `json:"html"`
	CSS         string   `json:"css"`
	IsPublic    bool     `json:"isPublic"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" || strings.TrimSpace(req.HTML) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "`name`, `slug`, and `html` are required.", nil)
		return
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !ValidSlug(slug) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "`slug` may contain only lowercase letters, digits, and hyphens.", nil)
		return
	}
	if req.Category != "" && !ValidCategory(req.Category) {
		respond.Error(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("Unknown category %q.", req.Category), nil)
		return
	}
	c.Set("templateSlug", slug)

	t, err := h.Svc.Create(c.Request.Context(), middleware.TenantIDFromContext(c), CreateInput{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		HTML:        req.HTML,
		CSS:         req.CSS,
		IsPublic:    req.IsPublic,
		Category:    req.Category,
		Tags:        req.Tags,
	})
	if err != nil {
		var renderErr *RenderError
		switch {
		case errors.Is(err, ErrSlugTaken):
			respond.Error(c, http.StatusConflict, "conflict", fmt.Sprintf("Template slug %q already exists.", slug), nil)
		case errors.As(err, &renderErr):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Template HTML does not compile.", renderErr.Err.Error())
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "failed to create template", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, t)
}
