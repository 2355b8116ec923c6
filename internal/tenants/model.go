package tenants

import "time"

const (
	DefaultMaxBulkSize     = 10
	DefaultMaxPdfsPerMonth = 100
)

// Tenant is an API customer. Jobs, templates and usage are scoped to it.
type Tenant struct {
	ID              string
	Name            string
	WebhookURL      *string
	MaxBulkSize     int
	MaxPdfsPerMonth int
	IsActive        bool
	CreatedAt       time.Time
}

// APIKey authenticates requests for a tenant. Only the key's hash is stored.
type APIKey struct {
	ID        string
	TenantID  string
	KeyHash   string
	Label     string
	IsActive  bool
	CreatedAt time.Time
}
