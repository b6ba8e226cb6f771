package encounter

import "context"

// Repository stores the source data claims are built from. Every method is
// scoped to a tenant; rows of another tenant are reported as ErrNotFound.
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, tenantID, id int64) (*Patient, error)
	ListPatients(ctx context.Context, tenantID int64, limit, offset int) ([]*Patient, int, error)

	// Insurances are listed in id order; the first is the primary.
	AddInsurance(ctx context.Context, ins *Insurance) error
	ListInsurances(ctx context.Context, tenantID, patientID int64) ([]*Insurance, error)

	CreateEncounter(ctx context.Context, enc *Encounter) error
	GetEncounter(ctx context.Context, tenantID, id int64) (*Encounter, error)
	ListEncounters(ctx context.Context, tenantID int64, f EncounterFilter, limit, offset int) ([]*Encounter, int, error)
	SetEncounterStatus(ctx context.Context, tenantID, id int64, status string) error

	// Charges are listed in id order.
	AddCharge(ctx context.Context, ch *Charge) error
	ListCharges(ctx context.Context, tenantID, encounterID int64) ([]*Charge, error)
}
