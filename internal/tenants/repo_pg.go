package tenants

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, tenant Tenant) error {
	const query = `
INSERT INTO tenants (id, name, webhook_url, max_bulk_size, max_pdfs_per_month, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.WebhookURL,
		tenant.MaxBulkSize,
		tenant.MaxPdfsPerMonth,
		tenant.IsActive,
		tenant.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, tenantID string) (Tenant, error) {
	const query = `
SELECT id, name, webhook_url, max_bulk_size, max_pdfs_per_month, is_active, created_at
FROM tenants
WHERE id = $1::uuid`
	return scanTenant(r.DB.QueryRowContext(ctx, query, tenantID))
}

func (r *PGRepo) CreateAPIKey(ctx context.Context, key APIKey) error {
	const query = `
INSERT INTO api_keys (id, tenant_id, key_hash, label, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query, key.ID, key.TenantID, key.KeyHash, key.Label, key.IsActive, key.CreatedAt)
	return err
}

func (r *PGRepo) FindByKeyHash(ctx context.Context, keyHash string) (Tenant, error) {
	const query = `
SELECT t.id, t.name, t.webhook_url, t.max_bulk_size, t.max_pdfs_per_month, t.is_active, t.created_at
FROM api_keys k
JOIN tenants t ON t.id = k.tenant_id
WHERE k.key_hash = $1 AND k.is_active AND t.is_active
LIMIT 1`
	return scanTenant(r.DB.QueryRowContext(ctx, query, keyHash))
}

func scanTenant(row *sql.Row) (Tenant, error) {
	var t Tenant
	var webhookURL sql.NullString
	err := row.Scan(&t.ID, &t.Name, &webhookURL, &t.MaxBulkSize, &t.MaxPdfsPerMonth, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	if webhookURL.Valid && webhookURL.String != "" {
		t.WebhookURL = &webhookURL.String
	}
	return t, nil
}

var _ Repo = (*PGRepo)(nil)
