package templates

import (
	"context"
	"sync"
)

// MemoryRepo stores templates in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	bySlug map[string]Template
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{bySlug: make(map[string]Template)}
}

func (r *MemoryRepo) Create(ctx context.Context, t Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySlug[t.Slug]; ok {
		return ErrSlugTaken
	}
	t.Tags = append([]string(nil), t.Tags...)
	r.bySlug[t.Slug] = t
	return nil
}

func (r *MemoryRepo) FindBySlug(ctx context.Context, slug, tenantID string) (Template, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySlug[slug]
	if !ok || !t.VisibleTo(tenantID) {
		return Template{}, ErrNotFound
	}
	t.Tags = append([]string(nil), t.Tags...)
	return t, nil
}

var _ Repo = (*MemoryRepo)(nil)
