package ledger

import (
	"context"
	"database/sql"
	"errors"
)

// PGLedger stores step outputs in the run_ledger table.
type PGLedger struct {
	DB *sql.DB
}

func (l *PGLedger) Get(ctx context.Context, runID, step string) ([]byte, bool, error) {
	const query = `SELECT output FROM run_ledger WHERE run_id = $1 AND step = $2`
	var out []byte
	err := l.DB.QueryRowContext(ctx, query, runID, step).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (l *PGLedger) Put(ctx context.Context, runID, step string, output []byte) error {
	const query = `
INSERT INTO run_ledger (run_id, step, output, created_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (run_id, step) DO NOTHING`
	if output == nil {
		output = []byte{}
	}
	_, err := l.DB.ExecContext(ctx, query, runID, step, output)
	return err
}

var _ Ledger = (*PGLedger)(nil)
