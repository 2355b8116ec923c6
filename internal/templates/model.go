package templates

import (
	"regexp"
	"time"
)

// Categories a template may be listed under.
const (
	CategoryProfessional = "professional"
	CategoryCreative     = "creative"
	CategoryAcademic     = "academic"
	CategoryTechnical    = "technical"
	CategoryMinimal      = "minimal"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,99}$`)

// Template is a Handlebars HTML template. Public templates have no tenant.
type Template struct {
	ID          string    `json:"id"`
	TenantID    *string   `json:"tenantId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	HTML        string    `json:"html"`
	CSS         string    `json:"css"`
	IsPublic    bool      `json:"isPublic"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// VisibleTo reports whether tenantID may render t.
func (t Template) VisibleTo(tenantID string) bool {
	return t.IsPublic || (t.TenantID != nil && *t.TenantID == tenantID)
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryProfessional, CategoryCreative, CategoryAcademic, CategoryTechnical, CategoryMinimal:
		return true
	}
	return false
}

// ValidSlug reports whether s is a lowercase url-safe slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
