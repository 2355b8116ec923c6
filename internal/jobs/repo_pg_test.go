package jobs

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"resume-pdf-api/internal/ats"
)

var jobColumns = []string{
	"id", "tenant_id", "template_slug", "status", "resume_data", "pdf_url", "ats_score", "bulk_job_id",
	"notify_email", "error", "created_at", "updated_at",
}

func TestPGRepoCreateBatchUsesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	bulk := "6f1c8a9e-5c57-4b9c-9a3e-1f2d3c4b5a60"
	a := newJob("11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222", &bulk)
	b := newJob("33333333-3333-3333-3333-333333333333", a.TenantID, &bulk)

	mock.ExpectBegin()
	for _, j := range []Job{a, b} {
		mock.ExpectExec("INSERT INTO jobs").
			WithArgs(j.ID, j.TenantID, j.TemplateSlug, StatusPending, sqlmock.AnyArg(), bulk, nil, j.CreatedAt, j.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := repo.CreateBatch(context.Background(), []Job{a, b}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateBatchRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	a := newJob("11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222", nil)
	b := newJob("33333333-3333-3333-3333-333333333333", a.TenantID, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO jobs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.CreateBatch(context.Background(), []Job{a, b}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesJSONColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	rows := sqlmock.NewRows(jobColumns).AddRow(
		"job-1", "tenant-1", "default-resume", StatusCompleted,
		[]byte(`{"name":"Ada"}`), "https://cdn/x.pdf",
		[]byte(`{"total":72,"breakdown":{"skills":70,"experience":80,"summary":60,"structure":75}}`),
		nil, "ada@example.com", nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1::uuid AND tenant_id = $2::uuid")).
		WithArgs("job-1", "tenant-1").
		WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	job, err := repo.GetByID(context.Background(), "job-1", "tenant-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.ResumeData["name"] != "Ada" {
		t.Fatalf("unexpected resume data %v", job.ResumeData)
	}
	if job.AtsScore == nil || job.AtsScore.Total != 72 || job.AtsScore.Breakdown.Structure != 75 {
		t.Fatalf("unexpected ats score %+v", job.AtsScore)
	}
	if job.PdfURL == nil || *job.PdfURL != "https://cdn/x.pdf" {
		t.Fatalf("unexpected pdf url %v", job.PdfURL)
	}
	if job.BulkJobID != nil || job.Error != nil {
		t.Fatalf("expected nil bulk id and error, got %+v", job)
	}
}

func TestPGRepoGetByIDMalformedIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM jobs").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})

	repo := &PGRepo{DB: db}
	if _, err := repo.GetByID(context.Background(), "not-a-uuid", "tenant-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateByIDCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE jobs").
		WithArgs(StatusCompleted, "https://cdn/x.pdf", sqlmock.AnyArg(), nil, "job-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	if err := repo.UpdateByID(context.Background(), "job-1", Completed("https://cdn/x.pdf", ats.Result{Total: 10})); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateByIDDistinguishesBackwardFromMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusCompleted))
	if err := repo.UpdateByID(context.Background(), "job-1", Processing()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	mock.ExpectExec("UPDATE jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM jobs").
		WithArgs("job-2").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	if err := repo.UpdateByID(context.Background(), "job-2", Processing()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateByIDRequiresProcessingBeforeTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectExec(regexp.QuoteMeta("END) = $6::int - 1")).
		WithArgs(StatusFailed, nil, nil, "boom", "job-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusPending))
	if err := repo.UpdateByID(context.Background(), "job-1", Failed("boom")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateByIDRejectsInvalidPatchWithoutQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	if err := repo.UpdateByID(context.Background(), "job-1", Patch{Status: StatusCompleted}); !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
