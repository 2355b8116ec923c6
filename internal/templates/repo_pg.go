package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, t Template) error {
	const query = `
INSERT INTO templates (id, tenant_id, slug, name, description, html, css, is_public, category, tags, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		t.ID,
		t.TenantID,
		t.Slug,
		t.Name,
		t.Description,
		t.HTML,
		t.CSS,
		t.IsPublic,
		t.Category,
		tagsJSON,
		t.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrSlugTaken
	}
	return err
}

func (r *PGRepo) FindBySlug(ctx context.Context, slug, tenantID string) (Template, error) {
	const query = `
SELECT id, tenant_id, slug, name, description, html, css, is_public, category, tags, created_at
FROM templates
WHERE slug = $1 AND (is_public OR tenant_id::text = $2)
LIMIT 1`
	var (
		t        Template
		tenant   sql.NullString
		tagsJSON []byte
	)
	err := r.DB.QueryRowContext(ctx, query, slug, tenantID).Scan(
		&t.ID, &tenant, &t.Slug, &t.Name, &t.Description, &t.HTML, &t.CSS, &t.IsPublic, &t.Category, &tagsJSON, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}
	if tenant.Valid {
		t.TenantID = &tenant.String
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
			return Template{}, err
		}
	}
	return t, nil
}

var _ Repo = (*PGRepo)(nil)
