package claim

import (
	"github.com/rcm/rcm/internal/domain/encounter"
	"github.com/rcm/rcm/internal/domain/tenant"
)

// Source is everything a claim is assembled from. Insurance is the primary
// coverage and may be nil.
type Source struct {
	Patient   *encounter.Patient
	Insurance *encounter.Insurance
	Encounter *encounter.Encounter
	Charges   []*encounter.Charge
	Profile   *tenant.Profile
}

// BuildContent maps src into claim content. Output depends only on src;
// charges keep their order.
func BuildContent(src Source) Content {
	c := Content{
		RenderingProvider: RenderingProvider{NPI: src.Encounter.ProviderNPI},
		Patient: PatientInfo{
			Name: src.Patient.FullName(),
			DOB:  src.Patient.DOB,
		},
		ServiceLines: make([]ServiceLine, 0, len(src.Charges)),
	}
	if src.Profile != nil {
		c.BillingProvider = BillingProvider{NPI: src.Profile.NPI, TaxID: src.Profile.TaxID}
	}
	if ins := src.Insurance; ins != nil {
		c.Subscriber = Subscriber{
			Name:     ins.SubscriberName,
			MemberID: ins.MemberID,
			DOB:      ins.SubscriberDOB,
		}
	}
	for _, ch := range src.Charges {
		units := ch.Units
		if units <= 0 {
			units = 1
		}
		c.ServiceLines = append(c.ServiceLines, ServiceLine{
			CPT:      ch.CPT,
			ICD10:    ch.ICD10,
			Modifier: ch.Modifier,
			Units:    units,
			Charge:   ch.ChargeAmount,
		})
	}
	return c
}
