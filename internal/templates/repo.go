package templates

import "context"

// Repo persists templates.
type Repo interface {
	// Create stores t. It returns ErrSlugTaken when the slug is in use.
	Create(ctx context.Context, t Template) error
	// FindBySlug returns the template with slug that is public or owned by tenantID.
	FindBySlug(ctx context.Context, slug, tenantID string) (Template, error)
}
