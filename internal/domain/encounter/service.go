package encounter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcm/rcm/internal/domain/audit"
	"github.com/rcm/rcm/internal/platform/auth"
)

// TxRunner runs fn in a unit of work. Both db.TxRunner and memstore.Store
// satisfy it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo  Repository
	tx    TxRunner
	audit *audit.Recorder
}

func NewService(repo Repository, tx TxRunner, rec *audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, audit: rec}
}

// PatientInput is a patient with an optional first insurance.
type PatientInput struct {
	Patient
	Insurance *Insurance `json:"insurance,omitempty"`
}

// PatientDetail is a patient with its insurances, primary first.
type PatientDetail struct {
	*Patient
	Insurances []*Insurance `json:"insurances"`
}

// EncounterDetail is an encounter with its charge lines.
type EncounterDetail struct {
	*Encounter
	Charges []*Charge `json:"charges"`
}

func auditUser(c auth.Caller) *int64 {
	uid := c.UserID
	return &uid
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*PatientDetail, error) {
	caller, err := auth.Authorize(ctx, auth.ActionSourceWrite)
	if err != nil {
		return nil, err
	}
	p := in.Patient
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return nil, fmt.Errorf("first_name and last_name are required: %w", ErrInvalidInput)
	}
	p.ID = 0
	p.TenantID = caller.TenantID

	detail := &PatientDetail{Patient: &p, Insurances: []*Insurance{}}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePatient(ctx, &p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		if in.Insurance == nil || in.Insurance.empty() {
			return nil
		}
		ins := *in.Insurance
		ins.ID = 0
		ins.TenantID = caller.TenantID
		ins.PatientID = p.ID
		if err := s.repo.AddInsurance(ctx, &ins); err != nil {
			return fmt.Errorf("add insurance: %w", err)
		}
		detail.Insurances = append(detail.Insurances, &ins)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID: caller.TenantID,
		UserID:   auditUser(caller),
		Entity:   audit.EntityPatient,
		EntityID: p.ID,
		Action:   audit.ActionPatientCreated,
		Metadata: map[string]any{"insuranceAdded": len(detail.Insurances) > 0},
	})
	return detail, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*PatientDetail, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetPatient(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}
	ins, err := s.repo.ListInsurances(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}
	if ins == nil {
		ins = []*Insurance{}
	}
	return &PatientDetail{Patient: p, Insurances: ins}, nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListPatients(ctx, caller.TenantID, limit, offset)
}

// AddInsurance appends a coverage to an existing patient. Coverages added
// later are secondary to earlier ones.
func (s *Service) AddInsurance(ctx context.Context, patientID int64, ins Insurance) (*Insurance, error) {
	caller, err := auth.Authorize(ctx, auth.ActionSourceWrite)
	if err != nil {
		return nil, err
	}
	if ins.empty() {
		return nil, fmt.Errorf("insurance has no fields: %w", ErrInvalidInput)
	}
	if _, err := s.repo.GetPatient(ctx, caller.TenantID, patientID); err != nil {
		return nil, err
	}
	ins.ID = 0
	ins.TenantID = caller.TenantID
	ins.PatientID = patientID
	if err := s.repo.AddInsurance(ctx, &ins); err != nil {
		return nil, fmt.Errorf("add insurance: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID: caller.TenantID,
		UserID:   auditUser(caller),
		Entity:   audit.EntityInsurance,
		EntityID: ins.ID,
		Action:   audit.ActionInsuranceAdded,
		Metadata: map[string]any{"patientId": patientID},
	})
	return &ins, nil
}

// -- Encounters --

func (s *Service) CreateEncounter(ctx context.Context, enc Encounter) (*Encounter, error) {
	caller, err := auth.Authorize(ctx, auth.ActionSourceWrite)
	if err != nil {
		return nil, err
	}
	if enc.PatientID <= 0 {
		return nil, fmt.Errorf("patient_id is required: %w", ErrInvalidInput)
	}
	if _, err := s.repo.GetPatient(ctx, caller.TenantID, enc.PatientID); err != nil {
		return nil, err
	}
	enc.ID = 0
	enc.TenantID = caller.TenantID
	enc.Status = StatusOpen
	enc.ProviderNPI = strings.TrimSpace(enc.ProviderNPI)
	if err := s.repo.CreateEncounter(ctx, &enc); err != nil {
		return nil, fmt.Errorf("create encounter: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID: caller.TenantID,
		UserID:   auditUser(caller),
		Entity:   audit.EntityEncounter,
		EntityID: enc.ID,
		Action:   audit.ActionEncounterCreated,
		Metadata: map[string]any{"patientId": enc.PatientID},
	})
	return &enc, nil
}

func (s *Service) GetEncounter(ctx context.Context, id int64) (*EncounterDetail, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, err
	}
	enc, err := s.repo.GetEncounter(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}
	charges, err := s.repo.ListCharges(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}
	if charges == nil {
		charges = []*Charge{}
	}
	return &EncounterDetail{Encounter: enc, Charges: charges}, nil
}

func (s *Service) ListEncounters(ctx context.Context, f EncounterFilter, limit, offset int) ([]*Encounter, int, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, 0, err
	}
	if f.Status != "" && f.Status != StatusOpen && f.Status != StatusClaimed {
		return nil, 0, fmt.Errorf("unknown status %q: %w", f.Status, ErrInvalidInput)
	}
	return s.repo.ListEncounters(ctx, caller.TenantID, f, limit, offset)
}

// -- Charges --

// AddCharge appends a charge line to an OPEN encounter. Once a claim has
// been built the encounter's charges are frozen.
func (s *Service) AddCharge(ctx context.Context, ch Charge) (*Charge, error) {
	caller, err := auth.Authorize(ctx, auth.ActionChargeWrite)
	if err != nil {
		return nil, err
	}
	if ch.EncounterID <= 0 {
		return nil, fmt.Errorf("encounter_id is required: %w", ErrInvalidInput)
	}
	if ch.Units == 0 {
		ch.Units = 1
	}
	if ch.Units < 0 {
		return nil, fmt.Errorf("units must be positive: %w", ErrInvalidInput)
	}
	if ch.ChargeAmount < 0 {
		return nil, fmt.Errorf("charge_amount must not be negative: %w", ErrInvalidInput)
	}
	ch.CPT = strings.TrimSpace(ch.CPT)
	ch.ICD10 = strings.TrimSpace(ch.ICD10)
	ch.Modifier = strings.TrimSpace(ch.Modifier)
	ch.ID = 0
	ch.TenantID = caller.TenantID

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		enc, err := s.repo.GetEncounter(ctx, caller.TenantID, ch.EncounterID)
		if err != nil {
			return err
		}
		if enc.Status != StatusOpen {
			return fmt.Errorf("encounter %d is %s: %w", enc.ID, enc.Status, ErrConflict)
		}
		return s.repo.AddCharge(ctx, &ch)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID: caller.TenantID,
		UserID:   auditUser(caller),
		Entity:   audit.EntityCharge,
		EntityID: ch.ID,
		Action:   audit.ActionChargeCreated,
		Metadata: map[string]any{"encounterId": ch.EncounterID, "cpt": ch.CPT},
	})
	return &ch, nil
}
