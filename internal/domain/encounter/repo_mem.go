package encounter

import (
	"context"
	"errors"
	"time"

	"github.com/rcm/rcm/internal/platform/memstore"
	"github.com/rcm/rcm/pkg/pagination"
)

type repoMem struct {
	patients   *memstore.Table[Patient]
	insurances *memstore.Table[Insurance]
	encounters *memstore.Table[Encounter]
	charges    *memstore.Table[Charge]
}

func NewRepoMem(store *memstore.Store) Repository {
	return &repoMem{
		patients:   memstore.NewTable[Patient](store, nil),
		insurances: memstore.NewTable[Insurance](store, nil),
		encounters: memstore.NewTable[Encounter](store, nil),
		charges:    memstore.NewTable[Charge](store, nil),
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, memstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func reversed[T any](in []T) []T {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	return in
}

func ptrs[T any](in []T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

func (r *repoMem) CreatePatient(ctx context.Context, p *Patient) error {
	stored, err := r.patients.Insert(ctx, p.TenantID, func(id int64) (Patient, error) {
		cp := *p
		cp.ID = id
		cp.CreatedAt = time.Now().UTC()
		return cp, nil
	})
	if err == nil {
		*p = stored
	}
	return err
}

func (r *repoMem) GetPatient(ctx context.Context, tenantID, id int64) (*Patient, error) {
	p, err := r.patients.Get(ctx, tenantID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

func (r *repoMem) ListPatients(ctx context.Context, tenantID int64, limit, offset int) ([]*Patient, int, error) {
	all := reversed(r.patients.List(ctx, tenantID, nil))
	page := pagination.Slice(all, pagination.Params{Limit: limit, Offset: offset})
	return ptrs(page), len(all), nil
}

func (r *repoMem) AddInsurance(ctx context.Context, ins *Insurance) error {
	stored, err := r.insurances.Insert(ctx, ins.TenantID, func(id int64) (Insurance, error) {
		cp := *ins
		cp.ID = id
		cp.CreatedAt = time.Now().UTC()
		return cp, nil
	})
	if err == nil {
		*ins = stored
	}
	return err
}

func (r *repoMem) ListInsurances(ctx context.Context, tenantID, patientID int64) ([]*Insurance, error) {
	return ptrs(r.insurances.List(ctx, tenantID, func(i Insurance) bool {
		return i.PatientID == patientID
	})), nil
}

func (r *repoMem) CreateEncounter(ctx context.Context, enc *Encounter) error {
	stored, err := r.encounters.Insert(ctx, enc.TenantID, func(id int64) (Encounter, error) {
		cp := *enc
		cp.ID = id
		cp.CreatedAt = time.Now().UTC()
		return cp, nil
	})
	if err == nil {
		*enc = stored
	}
	return err
}

func (r *repoMem) GetEncounter(ctx context.Context, tenantID, id int64) (*Encounter, error) {
	e, err := r.encounters.Get(ctx, tenantID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &e, nil
}

func (r *repoMem) ListEncounters(ctx context.Context, tenantID int64, f EncounterFilter, limit, offset int) ([]*Encounter, int, error) {
	all := reversed(r.encounters.List(ctx, tenantID, func(e Encounter) bool {
		if f.PatientID > 0 && e.PatientID != f.PatientID {
			return false
		}
		return f.Status == "" || e.Status == f.Status
	}))
	page := pagination.Slice(all, pagination.Params{Limit: limit, Offset: offset})
	return ptrs(page), len(all), nil
}

func (r *repoMem) SetEncounterStatus(ctx context.Context, tenantID, id int64, status string) error {
	_, err := r.encounters.Update(ctx, tenantID, id, func(e *Encounter) error {
		e.Status = status
		return nil
	})
	return mapNotFound(err)
}

func (r *repoMem) AddCharge(ctx context.Context, ch *Charge) error {
	stored, err := r.charges.Insert(ctx, ch.TenantID, func(id int64) (Charge, error) {
		cp := *ch
		cp.ID = id
		cp.CreatedAt = time.Now().UTC()
		return cp, nil
	})
	if err == nil {
		*ch = stored
	}
	return err
}

func (r *repoMem) ListCharges(ctx context.Context, tenantID, encounterID int64) ([]*Charge, error) {
	return ptrs(r.charges.List(ctx, tenantID, func(c Charge) bool {
		return c.EncounterID == encounterID
	})), nil
}
