package claim

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	cptPattern = regexp.MustCompile(`(?i)^[A-Z0-9]{4,5}$`)
	icdPattern = regexp.MustCompile(`(?i)^[A-Z][0-9A-Z]{2}(\.[0-9A-Z]{1,4})?$`)
)

// Scrubber runs the pre-submission rules over claim content. It has no
// side effects; the clock only stamps RanAt.
type Scrubber struct {
	now func() time.Time
}

func NewScrubber(now func() time.Time) *Scrubber {
	if now == nil {
		now = time.Now
	}
	return &Scrubber{now: now}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Validate checks c. Errors are reported in a fixed order: patient DOB,
// member id, rendering NPI, then each service line's CPT, ICD-10 and
// modifier.
func (s *Scrubber) Validate(c Content) Verdict {
	errs := []FieldError{}
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if blank(c.Patient.DOB) {
		add("patient.dob", "Missing patient DOB")
	}
	if blank(c.Subscriber.MemberID) {
		add("subscriber.memberId", "Missing member ID")
	}
	if blank(c.RenderingProvider.NPI) {
		add("renderingProvider.npi", "Missing rendering provider NPI")
	}

	for i, line := range c.ServiceLines {
		if !cptPattern.MatchString(line.CPT) {
			add(fmt.Sprintf("serviceLines[%d].cpt", i), "Invalid CPT format")
		}
		if !icdPattern.MatchString(line.ICD10) {
			add(fmt.Sprintf("serviceLines[%d].icd10", i), "Invalid ICD-10 format")
		}
		if !blank(line.Modifier) && blank(line.CPT) {
			add(fmt.Sprintf("serviceLines[%d].modifier", i), "Modifier present without CPT")
		}
	}

	return Verdict{
		Valid:  len(errs) == 0,
		Errors: errs,
		RanAt:  s.now().UTC(),
	}
}
