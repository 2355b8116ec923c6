package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB  *sql.DB
	now func() time.Time
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db, now: time.Now}
}

func (s *pgStore) EnsurePeriod(ctx context.Context, tenantID string) (u Usage, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Usage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	u, err = s.lockAndEnsure(ctx, tx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	if err = tx.Commit(); err != nil {
		return Usage{}, err
	}
	return u, nil
}

func (s *pgStore) Record(ctx context.Context, tenantID, jobID string) (u Usage, counted bool, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Usage{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// The row lock serializes concurrent increments for one tenant.
	u, err = s.lockAndEnsure(ctx, tx, tenantID)
	if err != nil {
		return Usage{}, false, err
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO usage_events (job_id, tenant_id, created_at) VALUES ($1, $2, now())
ON CONFLICT (job_id) DO NOTHING`, jobID, tenantID)
	if err != nil {
		return Usage{}, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err = tx.Commit(); err != nil {
			return Usage{}, false, err
		}
		return u, false, nil
	}

	u.Used++
	if _, err = tx.ExecContext(ctx, `UPDATE usage SET used = $1 WHERE tenant_id = $2`, u.Used, tenantID); err != nil {
		return Usage{}, false, err
	}
	if err = tx.Commit(); err != nil {
		return Usage{}, false, err
	}
	return u, true, nil
}

func (s *pgStore) Reset(ctx context.Context, tenantID string) (Usage, error) {
	resetsAt := nextPeriodStart(s.now())
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO usage (tenant_id, used, resets_at)
VALUES ($1, 0, $2)
ON CONFLICT (tenant_id) DO UPDATE SET used = 0, resets_at = EXCLUDED.resets_at`, tenantID, resetsAt); err != nil {
		return Usage{}, err
	}
	return Usage{Used: 0, ResetsAt: resetsAt}, nil
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, tenantID string) (Usage, error) {
	var u Usage
	row := tx.QueryRowContext(ctx, `
SELECT used, resets_at FROM usage WHERE tenant_id = $1 FOR UPDATE`, tenantID)
	err := row.Scan(&u.Used, &u.ResetsAt)
	now := s.now().UTC()
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return Usage{}, err
		}
		u = Usage{Used: 0, ResetsAt: nextPeriodStart(now)}
		// A concurrent first insert for the same tenant is absorbed by ON CONFLICT and re-read under lock.
		if _, err := tx.ExecContext(ctx, `
INSERT INTO usage (tenant_id, used, resets_at) VALUES ($1, $2, $3)
ON CONFLICT (tenant_id) DO NOTHING`, tenantID, u.Used, u.ResetsAt); err != nil {
			return Usage{}, err
		}
		row = tx.QueryRowContext(ctx, `
SELECT used, resets_at FROM usage WHERE tenant_id = $1 FOR UPDATE`, tenantID)
		if err := row.Scan(&u.Used, &u.ResetsAt); err != nil {
			return Usage{}, err
		}
	}

	if periodExpired(now, u.ResetsAt) {
		u.Used = 0
		u.ResetsAt = nextPeriodStart(now)
		if _, err := tx.ExecContext(ctx, `UPDATE usage SET used = $1, resets_at = $2 WHERE tenant_id = $3`, u.Used, u.ResetsAt, tenantID); err != nil {
			return Usage{}, err
		}
	}
	return u, nil
}
