package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/audit"
	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/memstore"
)

type fixture struct {
	svc   *Service
	audit audit.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	auditRepo := audit.NewRepoMem(store)
	svc := NewService(NewRepoMem(store), audit.NewRecorder(auditRepo, zerolog.Nop()))
	if err := svc.Create(context.Background(), &Profile{Name: "Demo", NPI: "1234567890", TaxID: "12-3456789"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return &fixture{svc: svc, audit: auditRepo}
}

func as(role string, tenantID int64) context.Context {
	return auth.WithCaller(context.Background(), auth.Caller{UserID: 3, Role: role, TenantID: tenantID})
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)

	p := &Profile{Name: "  Second  "}
	if err := f.svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 2 || p.Name != "Second" || p.PracticeName != "Second" {
		t.Errorf("unexpected profile %+v", p)
	}

	if err := f.svc.Create(context.Background(), &Profile{Name: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	entries, _, _ := f.audit.List(context.Background(), 2, audit.Filter{})
	if len(entries) != 1 || entries[0].Action != audit.ActionTenantCreated || entries[0].EntityID != 2 {
		t.Fatalf("expected one TENANT_CREATED entry, got %+v", entries)
	}
	if entries[0].UserID != nil {
		t.Errorf("operator provisioning has no user, got %v", *entries[0].UserID)
	}
}

func TestService_Settings(t *testing.T) {
	f := newFixture(t)

	s, err := f.svc.GetSettings(as(auth.RoleCoder, 1))
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if s.NPI != "1234567890" || s.PracticeName != "Demo" {
		t.Errorf("unexpected settings %+v", s)
	}

	updated, err := f.svc.UpdateSettings(as(auth.RoleAdmin, 1), Settings{PracticeName: "Clinic", NPI: " 999 "})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.PracticeName != "Clinic" || updated.NPI != "999" {
		t.Errorf("unexpected settings %+v", updated)
	}

	entries, _, _ := f.audit.List(context.Background(), 1, audit.Filter{})
	if len(entries) != 2 || entries[0].Action != audit.ActionSettingsUpdated || entries[0].Entity != audit.EntityTenant {
		t.Errorf("expected SETTINGS_UPDATED after TENANT_CREATED, got %+v", entries)
	}
}

func TestService_UpdateSettings_Rejects(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.UpdateSettings(as(auth.RoleBiller, 1), Settings{PracticeName: "x"}); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.UpdateSettings(as(auth.RoleAdmin, 1), Settings{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.UpdateSettings(as(auth.RoleAdmin, 42), Settings{PracticeName: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.GetSettings(context.Background()); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
