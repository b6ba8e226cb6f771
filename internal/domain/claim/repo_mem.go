package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcm/rcm/internal/platform/memstore"
	"github.com/rcm/rcm/pkg/pagination"
)

type repoMem struct {
	claims  *memstore.Table[Claim]
	denials *memstore.Table[Denial]
}

func NewRepoMem(store *memstore.Store) Repository {
	return &repoMem{
		claims:  memstore.NewTable[Claim](store, cloneClaim),
		denials: memstore.NewTable[Denial](store, nil),
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, memstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *repoMem) GetClaim(ctx context.Context, tenantID, id int64) (*Claim, error) {
	c, err := r.claims.Get(ctx, tenantID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

func (r *repoMem) CreateClaim(ctx context.Context, tenantID int64, in NewClaim) (*Claim, error) {
	dup := r.claims.List(ctx, tenantID, func(c Claim) bool { return c.EncounterID == in.EncounterID })
	if len(dup) > 0 {
		return nil, fmt.Errorf("encounter %d already has a claim: %w", in.EncounterID, ErrConflictingState)
	}
	c, err := r.claims.Insert(ctx, tenantID, func(id int64) (Claim, error) {
		now := time.Now().UTC()
		return Claim{
			ID:          id,
			TenantID:    tenantID,
			PatientID:   in.PatientID,
			EncounterID: in.EncounterID,
			Status:      StatusDraft,
			Document:    in.Document,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoMem) UpdateClaim(ctx context.Context, tenantID, id int64, upd ClaimUpdate) (*Claim, error) {
	c, err := r.claims.Update(ctx, tenantID, id, func(c *Claim) error {
		if upd.ExpectVersion != 0 && c.Version != upd.ExpectVersion {
			return fmt.Errorf("claim %d changed since version %d: %w", id, upd.ExpectVersion, ErrConflictingState)
		}
		if upd.Status != "" {
			c.Status = upd.Status
		}
		if upd.Document != nil {
			c.Document = upd.Document.clone()
		}
		if upd.SubmittedAt != nil {
			t := *upd.SubmittedAt
			c.SubmittedAt = &t
		}
		c.Version++
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

func (r *repoMem) ListClaims(ctx context.Context, tenantID int64, f ListFilter) ([]*Claim, int, error) {
	all := r.claims.List(ctx, tenantID, func(c Claim) bool {
		if f.Status != "" && c.Status != f.Status {
			return false
		}
		return !f.HasScrubberErrors || c.hasScrubberErrors()
	})
	out := make([]*Claim, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, &all[i])
	}
	return pagination.Slice(out, pagination.Params{Limit: f.Limit, Offset: f.Offset}), len(out), nil
}

func (r *repoMem) CountByStatus(ctx context.Context, tenantID int64) (map[string]int, error) {
	counts := make(map[string]int)
	for _, c := range r.claims.List(ctx, tenantID, nil) {
		counts[c.Status]++
	}
	return counts, nil
}

func (r *repoMem) AddDenial(ctx context.Context, tenantID int64, in NewDenial) (*Denial, error) {
	d, err := r.denials.Insert(ctx, tenantID, func(id int64) (Denial, error) {
		return Denial{
			ID:        id,
			TenantID:  tenantID,
			ClaimID:   in.ClaimID,
			Reason:    in.Reason,
			Status:    in.Status,
			CreatedAt: time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoMem) ListDenialsForClaim(ctx context.Context, tenantID, claimID int64) ([]*Denial, error) {
	rows := r.denials.List(ctx, tenantID, func(d Denial) bool { return d.ClaimID == claimID })
	out := make([]*Denial, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
