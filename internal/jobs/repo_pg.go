package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"resume-pdf-api/internal/ats"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const insertJobQuery = `
INSERT INTO jobs (
	id, tenant_id, template_slug, status, resume_data, bulk_job_id, notify_email, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const selectJobColumns = `
SELECT id, tenant_id, template_slug, status, resume_data, pdf_url, ats_score, bulk_job_id,
       notify_email, error, created_at, updated_at
FROM jobs`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	return insertJob(ctx, r.DB, job)
}

// CreateBatch inserts all jobs in one transaction.
func (r *PGRepo) CreateBatch(ctx context.Context, list []Job) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, job := range list {
		if err := insertJob(ctx, tx, job); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertJob(ctx context.Context, db execer, job Job) error {
	data, err := json.Marshal(job.ResumeData)
	if err != nil {
		return fmt.Errorf("encode resume data: %w", err)
	}
	_, err = db.ExecContext(ctx, insertJobQuery,
		job.ID,
		job.TenantID,
		job.TemplateSlug,
		job.Status,
		data,
		job.BulkJobID,
		job.NotifyEmail,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID returns a job owned by tenantID.
func (r *PGRepo) GetByID(ctx context.Context, jobID, tenantID string) (Job, error) {
	row := r.DB.QueryRowContext(ctx, selectJobColumns+`
WHERE id = $1::uuid AND tenant_id = $2::uuid
LIMIT 1`, jobID, tenantID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// UpdateByID applies patch when the stored status ranks exactly one below the target status.
func (r *PGRepo) UpdateByID(ctx context.Context, jobID string, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	const query = `
UPDATE jobs
SET status = $1,
    pdf_url = COALESCE($2::text, pdf_url),
    ats_score = COALESCE($3::jsonb, ats_score),
    error = COALESCE($4::text, error),
    updated_at = now()
WHERE id = $5::uuid
  AND (CASE status WHEN 'pending' THEN 0 WHEN 'processing' THEN 1 ELSE 2 END) = $6::int - 1`

	var score any
	if patch.AtsScore != nil {
		payload, err := json.Marshal(patch.AtsScore)
		if err != nil {
			return err
		}
		score = payload
	}

	res, err := r.DB.ExecContext(ctx, query, patch.Status, patch.PdfURL, score, patch.Error, jobID, statusRank(patch.Status))
	if err != nil {
		if isInvalidID(err) {
			return ErrNotFound
		}
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1::uuid`, jobID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidTransition
}

// ListByBulkID returns a batch's jobs in creation order.
func (r *PGRepo) ListByBulkID(ctx context.Context, bulkJobID, tenantID string) ([]Job, error) {
	rows, err := r.DB.QueryContext(ctx, selectJobColumns+`
WHERE bulk_job_id = $1::uuid AND tenant_id = $2::uuid
ORDER BY created_at ASC, id ASC`, bulkJobID, tenantID)
	if err != nil {
		if isInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return collectJobs(rows)
}

// ListUnfinished returns stale pending or processing jobs, oldest first.
func (r *PGRepo) ListUnfinished(ctx context.Context, olderThan time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, selectJobColumns+`
WHERE status IN ('pending', 'processing') AND updated_at < $1
ORDER BY created_at ASC
LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var resumeData []byte
	var pdfURL sql.NullString
	var atsScore []byte
	var bulkJobID sql.NullString
	var notifyEmail sql.NullString
	var errMsg sql.NullString
	if err := row.Scan(
		&j.ID,
		&j.TenantID,
		&j.TemplateSlug,
		&j.Status,
		&resumeData,
		&pdfURL,
		&atsScore,
		&bulkJobID,
		&notifyEmail,
		&errMsg,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	if len(resumeData) > 0 {
		if err := json.Unmarshal(resumeData, &j.ResumeData); err != nil {
			return Job{}, fmt.Errorf("decode resume data: %w", err)
		}
	}
	if len(atsScore) > 0 {
		var score ats.Result
		if err := json.Unmarshal(atsScore, &score); err != nil {
			return Job{}, fmt.Errorf("decode ats score: %w", err)
		}
		j.AtsScore = &score
	}
	if pdfURL.Valid {
		j.PdfURL = &pdfURL.String
	}
	if bulkJobID.Valid {
		j.BulkJobID = &bulkJobID.String
	}
	if notifyEmail.Valid {
		j.NotifyEmail = &notifyEmail.String
	}
	if errMsg.Valid {
		j.Error = &errMsg.String
	}
	return j, nil
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// isInvalidID reports whether Postgres rejected an id that is not a valid uuid.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

var _ Repo = (*PGRepo)(nil)
