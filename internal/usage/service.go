package usage

import "context"

type store interface {
	EnsurePeriod(ctx context.Context, tenantID string) (Usage, error)
	// Record counts jobID once against the tenant. counted is false when jobID was already recorded.
	Record(ctx context.Context, tenantID, jobID string) (u Usage, counted bool, err error)
	Reset(ctx context.Context, tenantID string) (Usage, error)
}

// Service manages usage data via an underlying store.
type Service struct {
	store store
}

// NewService constructs a Service with in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Get returns the current usage for a tenant against limit.
func (s *Service) Get(ctx context.Context, tenantID string, limit int) (Usage, error) {
	u, err := s.store.EnsurePeriod(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	u.Limit = limit
	return u, nil
}

// CheckCap returns ErrLimitReached when the tenant has used n PDFs of a cap of limit and n >= limit.
func (s *Service) CheckCap(ctx context.Context, tenantID string, limit int) (Usage, error) {
	u, err := s.Get(ctx, tenantID, limit)
	if err != nil {
		return Usage{}, err
	}
	if u.Used >= limit {
		return u, ErrLimitReached
	}
	return u, nil
}

// RecordGeneration atomically increments the tenant's counter for a completed job.
// Recording the same job twice counts it once.
func (s *Service) RecordGeneration(ctx context.Context, tenantID, jobID string) (Usage, bool, error) {
	return s.store.Record(ctx, tenantID, jobID)
}

// Reset sets usage to zero and starts a new period.
func (s *Service) Reset(ctx context.Context, tenantID string) (Usage, error) {
	return s.store.Reset(ctx, tenantID)
}
