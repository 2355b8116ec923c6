package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecordGenerationCountsEachJobOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewService()

	u, counted, err := svc.RecordGeneration(ctx, "tenant-1", "job-1")
	if err != nil || !counted || u.Used != 1 {
		t.Fatalf("first record = %+v %v %v", u, counted, err)
	}
	u, counted, err = svc.RecordGeneration(ctx, "tenant-1", "job-1")
	if err != nil || counted || u.Used != 1 {
		t.Fatalf("repeat record = %+v %v %v", u, counted, err)
	}
}

func TestRecordGenerationIsAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := svc.RecordGeneration(ctx, "tenant-1", fmt.Sprintf("job-%d", i)); err != nil {
				t.Errorf("RecordGeneration: %v", err)
			}
		}(i)
	}
	wg.Wait()

	u, err := svc.Get(ctx, "tenant-1", 1000)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Used != n {
		t.Fatalf("expected %d, got %d", n, u.Used)
	}
}

func TestCheckCap(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	_, _, _ = svc.RecordGeneration(ctx, "tenant-1", "job-1")
	_, _, _ = svc.RecordGeneration(ctx, "tenant-1", "job-2")

	if _, err := svc.CheckCap(ctx, "tenant-1", 3); err != nil {
		t.Fatalf("expected room under cap, got %v", err)
	}
	u, err := svc.CheckCap(ctx, "tenant-1", 2)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if u.Used != 2 || u.Limit != 2 {
		t.Fatalf("unexpected usage %+v", u)
	}
}

func TestMemoryStoreResetsAtMonthBoundary(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	svc := &Service{store: store}

	u, _, _ := svc.RecordGeneration(ctx, "t", "job-1")
	if !u.ResetsAt.Equal(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected resetsAt %v", u.ResetsAt)
	}

	now = now.Add(2 * time.Hour)
	u, err := svc.Get(ctx, "t", 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Used != 0 {
		t.Fatalf("expected reset usage, got %d", u.Used)
	}
}

func TestPGStoreRecordSkipsDuplicateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPGStore(db)
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	resetsAt := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT used, resets_at FROM usage").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"used", "resets_at"}).AddRow(4, resetsAt))
	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("job-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE usage SET used").
		WithArgs(5, "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, counted, err := store.Record(context.Background(), "tenant-1", "job-1")
	if err != nil || !counted || u.Used != 5 {
		t.Fatalf("Record = %+v %v %v", u, counted, err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT used, resets_at FROM usage").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"used", "resets_at"}).AddRow(5, resetsAt))
	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("job-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	u, counted, err = store.Record(context.Background(), "tenant-1", "job-1")
	if err != nil || counted || u.Used != 5 {
		t.Fatalf("duplicate Record = %+v %v %v", u, counted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

type fixedCaps int

func (c fixedCaps) MonthlyCap(context.Context, string) (int, error) { return int(c), nil }

func TestLimiterAllowsUntilCapReached(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	l := NewLimiter(svc, fixedCaps(2))

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "tenant-1"); err != nil {
			t.Fatalf("Allow before cap: %v", err)
		}
		if _, _, err := svc.RecordGeneration(ctx, "tenant-1", fmt.Sprintf("job-%d", i)); err != nil {
			t.Fatalf("RecordGeneration: %v", err)
		}
	}
	if err := l.Allow(ctx, "tenant-1"); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("Allow at cap = %v, want ErrLimitReached", err)
	}
	if err := l.Allow(ctx, "tenant-2"); err != nil {
		t.Fatalf("other tenant: %v", err)
	}
}
