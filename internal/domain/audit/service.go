package audit

import (
	"context"

	"github.com/rcm/rcm/internal/platform/auth"
)

// Service serves the audit trail to administrators.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the caller's tenant entries, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	caller, err := auth.Authorize(ctx, auth.ActionAuditRead)
	if err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, caller.TenantID, f)
}
