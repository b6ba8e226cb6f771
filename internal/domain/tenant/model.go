package tenant

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("tenant: not found")
	ErrInvalidInput = errors.New("tenant: invalid input")
)

// Profile is a tenant's billing identity. NPI and TaxID populate the
// billing provider block of every claim built for the tenant.
type Profile struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PracticeName string    `json:"practiceName"`
	NPI          string    `json:"npi"`
	TaxID        string    `json:"taxId"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Settings is the editable part of a profile.
type Settings struct {
	PracticeName string `json:"practiceName"`
	NPI          string `json:"npi"`
	TaxID        string `json:"taxId"`
	Address      string `json:"address"`
}

func (p *Profile) Settings() Settings {
	return Settings{PracticeName: p.PracticeName, NPI: p.NPI, TaxID: p.TaxID, Address: p.Address}
}
