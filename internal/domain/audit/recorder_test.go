package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/platform/memstore"
)

type failingRepo struct{}

func (failingRepo) Append(context.Context, *Entry) error {
	return errors.New("disk full")
}

func (failingRepo) List(context.Context, int64, Filter) ([]*Entry, int, error) {
	return nil, 0, nil
}

func TestNewEventID_Sortable(t *testing.T) {
	a := NewEventID()
	b := NewEventID()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected 26-char ULIDs, got %q %q", a, b)
	}
	if a >= b {
		t.Errorf("expected monotonic ids, got %s then %s", a, b)
	}
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	repo := NewRepoMem(memstore.New())
	rec := NewRecorder(repo, zerolog.Nop())

	uid := int64(9)
	rec.Record(ctx, Entry{TenantID: 1, UserID: &uid, Entity: EntityClaim, EntityID: 4, Action: ActionClaimBuilt})

	entries, total, err := repo.List(ctx, 1, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 entry, got %d", total)
	}
	e := entries[0]
	if e.EventID == "" || e.ID != 1 || e.CreatedAt.IsZero() {
		t.Errorf("expected id, event id and timestamp to be set: %+v", e)
	}
	if e.Metadata == nil {
		t.Error("expected empty metadata map, got nil")
	}
}

func TestRecorder_RecordSwallowsFailure(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(failingRepo{}, zerolog.New(&buf))

	rec.Record(context.Background(), Entry{TenantID: 1, Entity: EntityClaim, EntityID: 2, Action: ActionClaimSubmitted})

	line := buf.String()
	for _, want := range []string{`"type":"audit_write_failed"`, `"action":"CLAIM_SUBMITTED"`, `"tenant_id":1`, `"event_id"`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in log line %s", want, line)
		}
	}
}

func TestRecorder_RecordStrict(t *testing.T) {
	rec := NewRecorder(failingRepo{}, zerolog.Nop())
	err := rec.RecordStrict(context.Background(), Entry{TenantID: 1, Entity: EntityDenial, EntityID: 1, Action: ActionDenialCreated})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}

	ok := NewRecorder(NewRepoMem(memstore.New()), zerolog.Nop())
	if err := ok.RecordStrict(context.Background(), Entry{TenantID: 1, Entity: EntityDenial, EntityID: 1, Action: ActionDenialCreated}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
