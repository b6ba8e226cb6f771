package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/rcm/rcm/internal/platform/memstore"
)

// Tenants are global, so the memory repository keeps them all in partition 0.
const globalPartition = 0

type repoMem struct {
	profiles *memstore.Table[Profile]
}

func NewRepoMem(store *memstore.Store) Repository {
	return &repoMem{profiles: memstore.NewTable[Profile](store, nil)}
}

func (r *repoMem) Create(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	stored, err := r.profiles.Insert(ctx, globalPartition, func(id int64) (Profile, error) {
		cp := *p
		cp.ID = id
		cp.CreatedAt = now
		cp.UpdatedAt = now
		return cp, nil
	})
	if err != nil {
		return err
	}
	*p = stored
	return nil
}

func (r *repoMem) Get(ctx context.Context, id int64) (*Profile, error) {
	p, err := r.profiles.Get(ctx, globalPartition, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoMem) UpdateSettings(ctx context.Context, id int64, s Settings) (*Profile, error) {
	p, err := r.profiles.Update(ctx, globalPartition, id, func(p *Profile) error {
		p.PracticeName = s.PracticeName
		p.NPI = s.NPI
		p.TaxID = s.TaxID
		p.Address = s.Address
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
