package usage

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.Mutex
	data     map[string]Usage
	recorded map[string]struct{}
	now      func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:     make(map[string]Usage),
		recorded: make(map[string]struct{}),
		now:      time.Now,
	}
}

func (s *memoryStore) EnsurePeriod(ctx context.Context, tenantID string) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(tenantID), nil
}

func (s *memoryStore) ensureLocked(tenantID string) Usage {
	now := s.now().UTC()
	u, ok := s.data[tenantID]
	if !ok || periodExpired(now, u.ResetsAt) {
		u = Usage{Used: 0, ResetsAt: nextPeriodStart(now)}
		s.data[tenantID] = u
	}
	return u
}

func (s *memoryStore) Record(ctx context.Context, tenantID, jobID string) (Usage, bool, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.ensureLocked(tenantID)
	if _, seen := s.recorded[jobID]; seen {
		return u, false, nil
	}
	s.recorded[jobID] = struct{}{}
	u.Used++
	s.data[tenantID] = u
	return u, true, nil
}

func (s *memoryStore) Reset(ctx context.Context, tenantID string) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := Usage{Used: 0, ResetsAt: nextPeriodStart(s.now())}
	s.data[tenantID] = u
	return u, nil
}
