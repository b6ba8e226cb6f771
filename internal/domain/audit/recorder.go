package audit

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/platform/metrics"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewEventID returns a lexicographically sortable event id.
func NewEventID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Recorder appends entries for mutating operations.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) prepare(e *Entry) {
	if e.EventID == "" {
		e.EventID = NewEventID()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
}

// Record appends e and never fails the caller. A write failure is logged and
// counted in rcm_audit_write_failures_total.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	r.prepare(&e)
	if err := r.repo.Append(ctx, &e); err != nil {
		r.failed(e, err)
	}
}

// RecordStrict appends e and reports failure as ErrWriteFailed, for callers
// that must roll back their own writes when the trail cannot be written.
func (r *Recorder) RecordStrict(ctx context.Context, e Entry) error {
	r.prepare(&e)
	if err := r.repo.Append(ctx, &e); err != nil {
		r.failed(e, err)
		return fmt.Errorf("%s %s/%d: %w", e.Action, e.Entity, e.EntityID, ErrWriteFailed)
	}
	return nil
}

func (r *Recorder) failed(e Entry, err error) {
	metrics.AuditWriteFailed(e.Action)
	r.logger.Error().Err(err).
		Str("type", "audit_write_failed").
		Str("event_id", e.EventID).
		Int64("tenant_id", e.TenantID).
		Str("entity", e.Entity).
		Int64("entity_id", e.EntityID).
		Str("action", e.Action).
		Msg("audit entry not persisted")
}
