package audit

import (
	"context"
	"time"

	"github.com/rcm/rcm/internal/platform/memstore"
	"github.com/rcm/rcm/pkg/pagination"
)

type repoMem struct {
	entries *memstore.Table[*Entry]
	now     func() time.Time
}

func NewRepoMem(store *memstore.Store) Repository {
	return &repoMem{
		entries: memstore.NewTable(store, cloneEntry),
		now:     time.Now,
	}
}

func (r *repoMem) Append(ctx context.Context, e *Entry) error {
	stored, err := r.entries.Insert(ctx, e.TenantID, func(id int64) (*Entry, error) {
		cp := cloneEntry(e)
		cp.ID = id
		cp.CreatedAt = r.now().UTC()
		return cp, nil
	})
	if err != nil {
		return err
	}
	e.ID = stored.ID
	e.CreatedAt = stored.CreatedAt
	return nil
}

func (r *repoMem) List(ctx context.Context, tenantID int64, f Filter) ([]*Entry, int, error) {
	all := r.entries.List(ctx, tenantID, f.matches)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return pagination.Slice(all, pagination.Params{Limit: limit, Offset: f.Offset}), len(all), nil
}
