package tenants

import "context"

// Repo defines persistence operations for tenants and their API keys.
type Repo interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, tenantID string) (Tenant, error)
	CreateAPIKey(ctx context.Context, key APIKey) error
	// FindByKeyHash returns the active tenant owning an active key with the given hash.
	FindByKeyHash(ctx context.Context, keyHash string) (Tenant, error)
}
