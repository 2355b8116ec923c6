package templates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/google/uuid"

	"resume-pdf-api/internal/shared/telemetry"
)

//go:embed seeds/*.hbs
var seedFiles embed.FS

type seed struct {
	Name        string
	Slug        string
	Description string
	File        string
	Category    string
	Tags        []string
}

var defaultSeeds = []seed{
	{
		Name:        "Default Resume",
		Slug:        "default-resume",
		Description: "Clean, ATS-optimized single-column resume template.",
		File:        "seeds/default-resume.hbs",
		Category:    CategoryProfessional,
		Tags:        []string{"ats", "clean", "professional"},
	},
	{
		Name:        "Modern Resume",
		Slug:        "modern-resume",
		Description: "Two-column modern resume with sidebar for skills and contact.",
		File:        "seeds/modern-resume.hbs",
		Category:    CategoryCreative,
		Tags:        []string{"modern", "two-column", "creative"},
	},
}

// Service looks up, renders, and creates templates.
type Service struct {
	Repo Repo
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, now: time.Now}
}

// CreateInput holds the fields a tenant supplies for a new template.
type CreateInput struct {
	Name        string
	Slug        string
	Description string
	HTML        string
	CSS         string
	IsPublic    bool
	Category    string
	Tags        []string
}

// Find returns the template with slug that tenantID may use.
func (s *Service) Find(ctx context.Context, slug, tenantID string) (Template, error) {
	t, err := s.Repo.FindBySlug(ctx, slug, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Template{}, fmt.Errorf("%w: %q", ErrNotFound, slug)
		}
		return Template{}, err
	}
	return t, nil
}

// Render evaluates the template against data. CSS, when present, is prepended as a style block.
func (s *Service) Render(t Template, data map[string]any) (string, error) {
	src := t.HTML
	if t.CSS != "" {
		src = "<style>" + t.CSS + "</style>\n" + src
	}
	tpl, err := raymond.Parse(src)
	if err != nil {
		return "", &RenderError{Slug: t.Slug, Err: err}
	}
	tpl.RegisterHelpers(helpers())
	html, err := tpl.Exec(data)
	if err != nil {
		telemetry.Error("template.render_failed", map[string]any{"slug": t.Slug, "error": err})
		return "", &RenderError{Slug: t.Slug, Err: err}
	}
	return html, nil
}

// Create validates in and stores a template owned by tenantID.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (Template, error) {
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Name = strings.TrimSpace(in.Name)
	if in.Category == "" {
		in.Category = CategoryProfessional
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if _, err := raymond.Parse(in.HTML); err != nil {
		return Template{}, &RenderError{Slug: in.Slug, Err: err}
	}

	owner := tenantID
	t := Template{
		ID:          uuid.NewString(),
		TenantID:    &owner,
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		HTML:        in.HTML,
		CSS:         in.CSS,
		IsPublic:    in.IsPublic,
		Category:    in.Category,
		Tags:        in.Tags,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, t); err != nil {
		return Template{}, err
	}
	telemetry.Info("template.created", map[string]any{"slug": t.Slug, "tenant_id": tenantID})
	return t, nil
}

// SeedDefaults stores the built-in public templates. Slugs already present are left untouched.
func (s *Service) SeedDefaults(ctx context.Context) error {
	for _, sd := range defaultSeeds {
		raw, err := seedFiles.ReadFile(sd.File)
		if err != nil {
			return fmt.Errorf("read seed %s: %w", sd.File, err)
		}
		t := Template{
			ID:          uuid.NewString(),
			Slug:        sd.Slug,
			Name:        sd.Name,
			Description: sd.Description,
			HTML:        string(raw),
			IsPublic:    true,
			Category:    sd.Category,
			Tags:        sd.Tags,
			CreatedAt:   s.now().UTC(),
		}
		err = s.Repo.Create(ctx, t)
		switch {
		case errors.Is(err, ErrSlugTaken):
			continue
		case err != nil:
			return fmt.Errorf("seed %s: %w", sd.Slug, err)
		}
		telemetry.Info("template.seeded", map[string]any{"slug": sd.Slug})
	}
	return nil
}
