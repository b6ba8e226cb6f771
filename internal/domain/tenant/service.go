package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcm/rcm/internal/domain/audit"
	"github.com/rcm/rcm/internal/platform/auth"
)

type Service struct {
	repo  Repository
	audit *audit.Recorder
}

func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec}
}

// Create provisions a tenant. It is an operator action (CLI, demo seed) and
// is not exposed over HTTP, so the entry carries no user.
func (s *Service) Create(ctx context.Context, p *Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if p.PracticeName == "" {
		p.PracticeName = p.Name
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID: p.ID,
		Entity:   audit.EntityTenant,
		EntityID: p.ID,
		Action:   audit.ActionTenantCreated,
		Metadata: map[string]any{"name": p.Name},
	})
	return nil
}

// Profile returns the billing profile of tenantID. Used by the claim builder.
func (s *Service) Profile(ctx context.Context, tenantID int64) (*Profile, error) {
	return s.repo.Get(ctx, tenantID)
}

// GetSettings returns the caller's tenant settings.
func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return Settings{}, err
	}
	p, err := s.repo.Get(ctx, caller.TenantID)
	if err != nil {
		return Settings{}, err
	}
	return p.Settings(), nil
}

// UpdateSettings replaces the caller's tenant settings.
func (s *Service) UpdateSettings(ctx context.Context, in Settings) (Settings, error) {
	caller, err := auth.Authorize(ctx, auth.ActionSettingsWrite)
	if err != nil {
		return Settings{}, err
	}
	in.PracticeName = strings.TrimSpace(in.PracticeName)
	if in.PracticeName == "" {
		return Settings{}, fmt.Errorf("practiceName is required: %w", ErrInvalidInput)
	}
	in.NPI = strings.TrimSpace(in.NPI)
	in.TaxID = strings.TrimSpace(in.TaxID)

	p, err := s.repo.UpdateSettings(ctx, caller.TenantID, in)
	if err != nil {
		return Settings{}, err
	}

	uid := caller.UserID
	s.audit.Record(ctx, audit.Entry{
		TenantID: caller.TenantID,
		UserID:   &uid,
		Entity:   audit.EntityTenant,
		EntityID: caller.TenantID,
		Action:   audit.ActionSettingsUpdated,
	})
	return p.Settings(), nil
}
