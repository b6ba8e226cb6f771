package encounter

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("encounter: not found")
	ErrInvalidInput = errors.New("encounter: invalid input")
	ErrConflict     = errors.New("encounter: conflicting state")
)

// Encounter statuses. An encounter becomes CLAIMED once a claim is built
// from it and never goes back.
const (
	StatusOpen    = "OPEN"
	StatusClaimed = "CLAIMED"
)

type Patient struct {
	ID        int64     `db:"id" json:"id"`
	TenantID  int64     `db:"tenant_id" json:"tenant_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	DOB       string    `db:"dob" json:"dob"`
	Gender    string    `db:"gender" json:"gender"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FullName is "First Last" with surrounding space trimmed.
func (p *Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

type Insurance struct {
	ID             int64     `db:"id" json:"id"`
	TenantID       int64     `db:"tenant_id" json:"tenant_id"`
	PatientID      int64     `db:"patient_id" json:"patient_id"`
	PayerName      string    `db:"payer_name" json:"payer_name"`
	MemberID       string    `db:"member_id" json:"member_id"`
	SubscriberName string    `db:"subscriber_name" json:"subscriber_name"`
	SubscriberDOB  string    `db:"subscriber_dob" json:"subscriber_dob"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (i *Insurance) empty() bool {
	return i.PayerName == "" && i.MemberID == "" && i.SubscriberName == "" && i.SubscriberDOB == ""
}

type Encounter struct {
	ID             int64     `db:"id" json:"id"`
	TenantID       int64     `db:"tenant_id" json:"tenant_id"`
	PatientID      int64     `db:"patient_id" json:"patient_id"`
	DateOfService  string    `db:"date_of_service" json:"date_of_service"`
	ProviderNPI    string    `db:"provider_npi" json:"provider_npi"`
	PlaceOfService string    `db:"place_of_service" json:"place_of_service"`
	Notes          string    `db:"notes" json:"notes"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type Charge struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     int64     `db:"tenant_id" json:"tenant_id"`
	EncounterID  int64     `db:"encounter_id" json:"encounter_id"`
	CPT          string    `db:"cpt" json:"cpt"`
	ICD10        string    `db:"icd10" json:"icd10"`
	Modifier     string    `db:"modifier" json:"modifier"`
	Units        int       `db:"units" json:"units"`
	ChargeAmount float64   `db:"charge_amount" json:"charge_amount"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EncounterFilter narrows ListEncounters. Zero values mean "any".
type EncounterFilter struct {
	PatientID int64
	Status    string
}
