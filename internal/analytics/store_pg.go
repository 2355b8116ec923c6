package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PGStore writes events to the analytics_events table.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Insert(ctx context.Context, e Event) error {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO analytics_events (event, tenant_id, job_id, template_slug, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.DB.ExecContext(ctx, query, e.Name, nullable(e.TenantID), nullable(e.JobID), nullable(e.TemplateSlug), payload, e.CreatedAt)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PGStore)(nil)
