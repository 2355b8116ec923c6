package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-pdf-api/internal/shared/util"
)

// Service answers tenant configuration lookups and provisions tenants.
type Service struct {
	Repo               Repo
	DefaultMaxBulkSize int
	DefaultMonthlyCap  int
}

// NewService constructs a Service. Non-positive defaults fall back to 10 bulk items and 100 PDFs a month.
func NewService(repo Repo, defaultMaxBulkSize, defaultMonthlyCap int) *Service {
	if defaultMaxBulkSize <= 0 {
		defaultMaxBulkSize = DefaultMaxBulkSize
	}
	if defaultMonthlyCap <= 0 {
		defaultMonthlyCap = DefaultMaxPdfsPerMonth
	}
	return &Service{Repo: repo, DefaultMaxBulkSize: defaultMaxBulkSize, DefaultMonthlyCap: defaultMonthlyCap}
}

// ResolveAPIKey maps a raw API key to its tenant id.
func (s *Service) ResolveAPIKey(ctx context.Context, apiKey string) (string, bool, error) {
	t, err := s.Repo.FindByKeyHash(ctx, util.HashKey(apiKey))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return t.ID, true, nil
}

// WebhookURL returns the tenant's webhook URL, or "" when none is configured.
func (s *Service) WebhookURL(ctx context.Context, tenantID string) (string, error) {
	t, err := s.Repo.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if t.WebhookURL == nil {
		return "", nil
	}
	return *t.WebhookURL, nil
}

// MaxBulkSize returns the tenant's bulk item cap.
func (s *Service) MaxBulkSize(ctx context.Context, tenantID string) (int, error) {
	t, err := s.Repo.GetByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if t.MaxBulkSize <= 0 {
		return s.DefaultMaxBulkSize, nil
	}
	return t.MaxBulkSize, nil
}

// MonthlyCap returns how many PDFs the tenant may generate per month.
func (s *Service) MonthlyCap(ctx context.Context, tenantID string) (int, error) {
	t, err := s.Repo.GetByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if t.MaxPdfsPerMonth <= 0 {
		return s.DefaultMonthlyCap, nil
	}
	return t.MaxPdfsPerMonth, nil
}

// ProvisionInput describes a new tenant.
type ProvisionInput struct {
	Name       string
	WebhookURL string
	// APIKey is generated when empty.
	APIKey string
}

// Provision creates a tenant with one active API key and returns the raw key.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (Tenant, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Tenant{}, "", errors.New("tenant name is required")
	}
	rawKey := strings.TrimSpace(in.APIKey)
	if rawKey == "" {
		generated, err := util.GenerateAPIKey()
		if err != nil {
			return Tenant{}, "", err
		}
		rawKey = generated
	}

	now := time.Now().UTC()
	t := Tenant{
		ID:              uuid.NewString(),
		Name:            name,
		MaxBulkSize:     s.DefaultMaxBulkSize,
		MaxPdfsPerMonth: s.DefaultMonthlyCap,
		IsActive:        true,
		CreatedAt:       now,
	}
	if url := strings.TrimSpace(in.WebhookURL); url != "" {
		t.WebhookURL = &url
	}
	if err := s.Repo.Create(ctx, t); err != nil {
		return Tenant{}, "", fmt.Errorf("create tenant: %w", err)
	}
	key := APIKey{
		ID:        uuid.NewString(),
		TenantID:  t.ID,
		KeyHash:   util.HashKey(rawKey),
		Label:     "default",
		IsActive:  true,
		CreatedAt: now,
	}
	if err := s.Repo.CreateAPIKey(ctx, key); err != nil {
		return Tenant{}, "", fmt.Errorf("create api key: %w", err)
	}
	return t, rawKey, nil
}

// EnsureWithKey provisions a tenant for rawKey unless the key already resolves.
func (s *Service) EnsureWithKey(ctx context.Context, name, rawKey, webhookURL string) (string, error) {
	if id, ok, err := s.ResolveAPIKey(ctx, rawKey); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}
	t, _, err := s.Provision(ctx, ProvisionInput{Name: name, APIKey: rawKey, WebhookURL: webhookURL})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}
