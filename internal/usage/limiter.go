package usage

import (
	"context"
	"fmt"
)

// Limiter checks a tenant's monthly cap before a generation is accepted.
type Limiter struct {
	Svc  *Service
	Caps CapSource
}

// NewLimiter constructs a Limiter.
func NewLimiter(svc *Service, caps CapSource) *Limiter {
	return &Limiter{Svc: svc, Caps: caps}
}

// Allow returns ErrLimitReached when the tenant has used its monthly cap.
func (l *Limiter) Allow(ctx context.Context, tenantID string) error {
	limit, err := l.Caps.MonthlyCap(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("monthly cap: %w", err)
	}
	_, err = l.Svc.CheckCap(ctx, tenantID, limit)
	return err
}
