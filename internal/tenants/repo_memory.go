package tenants

import (
	"context"
	"sync"
)

// MemoryRepo stores tenants in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Tenant
	keys    map[string]APIKey
	keyHash map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Tenant),
		keys:    make(map[string]APIKey),
		keyHash: make(map[string]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, tenant Tenant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[tenant.ID] = tenant
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, tenantID string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[tenantID]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) CreateAPIKey(ctx context.Context, key APIKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[key.TenantID]; !ok {
		return ErrNotFound
	}
	r.keys[key.ID] = key
	r.keyHash[key.KeyHash] = key.ID
	return nil
}

func (r *MemoryRepo) FindByKeyHash(ctx context.Context, keyHash string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[r.keyHash[keyHash]]
	if !ok || !key.IsActive {
		return Tenant{}, ErrNotFound
	}
	t, ok := r.byID[key.TenantID]
	if !ok || !t.IsActive {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

var _ Repo = (*MemoryRepo)(nil)
