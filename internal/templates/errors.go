package templates

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no template matched the slug for the tenant.
	ErrNotFound = errors.New("template not found")
	// ErrSlugTaken indicates another template already uses the slug.
	ErrSlugTaken = errors.New("template slug already exists")
)

// RenderError wraps a Handlebars parse or evaluation failure.
type RenderError struct {
	Slug string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Slug, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
