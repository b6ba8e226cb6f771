package encounter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcm/rcm/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// -- Patients --

const patientCols = `id, tenant_id, first_name, last_name, dob, gender, created_at`

func (r *repoPG) CreatePatient(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (tenant_id, first_name, last_name, dob, gender)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.TenantID, p.FirstName, p.LastName, p.DOB, p.Gender,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *repoPG) GetPatient(ctx context.Context, tenantID, id int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE tenant_id = $1 AND id = $2`, tenantID, id,
	).Scan(&p.ID, &p.TenantID, &p.FirstName, &p.LastName, &p.DOB, &p.Gender, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repoPG) ListPatients(ctx context.Context, tenantID int64, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients WHERE tenant_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.TenantID, &p.FirstName, &p.LastName, &p.DOB, &p.Gender, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		patients = append(patients, &p)
	}
	return patients, total, rows.Err()
}

// -- Insurances --

func (r *repoPG) AddInsurance(ctx context.Context, ins *Insurance) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurances (tenant_id, patient_id, payer_name, member_id, subscriber_name, subscriber_dob)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		ins.TenantID, ins.PatientID, ins.PayerName, ins.MemberID, ins.SubscriberName, ins.SubscriberDOB,
	).Scan(&ins.ID, &ins.CreatedAt)
}

func (r *repoPG) ListInsurances(ctx context.Context, tenantID, patientID int64) ([]*Insurance, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, tenant_id, patient_id, payer_name, member_id, subscriber_name, subscriber_dob, created_at
		FROM insurances WHERE tenant_id = $1 AND patient_id = $2 ORDER BY id`, tenantID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Insurance
	for rows.Next() {
		var i Insurance
		if err := rows.Scan(&i.ID, &i.TenantID, &i.PatientID, &i.PayerName, &i.MemberID, &i.SubscriberName, &i.SubscriberDOB, &i.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &i)
	}
	return out, rows.Err()
}

// -- Encounters --

const encCols = `id, tenant_id, patient_id, date_of_service, provider_npi, place_of_service, notes, status, created_at`

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.TenantID, &e.PatientID, &e.DateOfService, &e.ProviderNPI, &e.PlaceOfService, &e.Notes, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *repoPG) CreateEncounter(ctx context.Context, enc *Encounter) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounters (tenant_id, patient_id, date_of_service, provider_npi, place_of_service, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		enc.TenantID, enc.PatientID, enc.DateOfService, enc.ProviderNPI, enc.PlaceOfService, enc.Notes, enc.Status,
	).Scan(&enc.ID, &enc.CreatedAt)
}

// GetEncounter locks the row when called inside a transaction, so that two
// concurrent builds for the same encounter serialize.
func (r *repoPG) GetEncounter(ctx context.Context, tenantID, id int64) (*Encounter, error) {
	q := `SELECT ` + encCols + ` FROM encounters WHERE tenant_id = $1 AND id = $2`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	return scanEnc(r.conn(ctx).QueryRow(ctx, q, tenantID, id))
}

func (r *repoPG) ListEncounters(ctx context.Context, tenantID int64, f EncounterFilter, limit, offset int) ([]*Encounter, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if f.PatientID > 0 {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounters WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+encCols+` FROM encounters WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encs []*Encounter
	for rows.Next() {
		e, err := scanEnc(rows)
		if err != nil {
			return nil, 0, err
		}
		encs = append(encs, e)
	}
	return encs, total, rows.Err()
}

func (r *repoPG) SetEncounterStatus(ctx context.Context, tenantID, id int64, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE encounters SET status = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Charges --

func (r *repoPG) AddCharge(ctx context.Context, ch *Charge) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO charges (tenant_id, encounter_id, cpt, icd10, modifier, units, charge_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		ch.TenantID, ch.EncounterID, ch.CPT, ch.ICD10, ch.Modifier, ch.Units, ch.ChargeAmount,
	).Scan(&ch.ID, &ch.CreatedAt)
}

func (r *repoPG) ListCharges(ctx context.Context, tenantID, encounterID int64) ([]*Charge, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, tenant_id, encounter_id, cpt, icd10, modifier, units, charge_amount::float8, created_at
		FROM charges WHERE tenant_id = $1 AND encounter_id = $2 ORDER BY id`, tenantID, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Charge
	for rows.Next() {
		var c Charge
		if err := rows.Scan(&c.ID, &c.TenantID, &c.EncounterID, &c.CPT, &c.ICD10, &c.Modifier, &c.Units, &c.ChargeAmount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
