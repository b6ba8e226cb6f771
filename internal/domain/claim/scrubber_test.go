package claim

import (
	"reflect"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func validContent() Content {
	return Content{
		BillingProvider:   BillingProvider{NPI: "1234567893", TaxID: "12-3456789"},
		RenderingProvider: RenderingProvider{NPI: "1234567893"},
		Subscriber:        Subscriber{Name: "Ada Lovelace", MemberID: "M-1", DOB: "1980-02-03"},
		Patient:           PatientInfo{Name: "Ada Lovelace", DOB: "1980-02-03"},
		ServiceLines: []ServiceLine{
			{CPT: "99213", ICD10: "J20.9", Units: 1, Charge: 120},
			{CPT: "8100f", ICD10: "z00.00", Modifier: "25", Units: 2, Charge: 40},
		},
	}
}

func fields(v Verdict) []string {
	out := []string{}
	for _, e := range v.Errors {
		out = append(out, e.Field)
	}
	return out
}

func TestScrubber_ValidContent(t *testing.T) {
	s := NewScrubber(func() time.Time { return fixedNow })
	v := s.Validate(validContent())
	if !v.Valid || len(v.Errors) != 0 {
		t.Fatalf("expected valid verdict, got %+v", v)
	}
	if !v.RanAt.Equal(fixedNow) {
		t.Errorf("expected RanAt %s, got %s", fixedNow, v.RanAt)
	}
	if v.Errors == nil {
		t.Error("Errors must be an empty list, not nil")
	}
}

func TestScrubber_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Content)
		want   []string
	}{
		{"missing dob", func(c *Content) { c.Patient.DOB = "" }, []string{"patient.dob"}},
		{"blank member id", func(c *Content) { c.Subscriber.MemberID = "   " }, []string{"subscriber.memberId"}},
		{"missing rendering npi", func(c *Content) { c.RenderingProvider.NPI = "" }, []string{"renderingProvider.npi"}},
		{"short cpt", func(c *Content) { c.ServiceLines[0].CPT = "X" }, []string{"serviceLines[0].cpt"}},
		{"long cpt", func(c *Content) { c.ServiceLines[0].CPT = "992130" }, []string{"serviceLines[0].cpt"}},
		{"cpt with punctuation", func(c *Content) { c.ServiceLines[1].CPT = "99-13" }, []string{"serviceLines[1].cpt"}},
		{"icd without letter", func(c *Content) { c.ServiceLines[0].ICD10 = "120.9" }, []string{"serviceLines[0].icd10"}},
		{"icd long suffix", func(c *Content) { c.ServiceLines[0].ICD10 = "J20.12345" }, []string{"serviceLines[0].icd10"}},
		{"icd trailing dot", func(c *Content) { c.ServiceLines[0].ICD10 = "J20." }, []string{"serviceLines[0].icd10"}},
		{"icd alnum second char", func(c *Content) { c.ServiceLines[0].ICD10 = "UA1" }, nil},
		{"orphan modifier", func(c *Content) { c.ServiceLines[1].CPT = "" }, []string{"serviceLines[1].cpt", "serviceLines[1].modifier"}},
		{"no service lines", func(c *Content) { c.ServiceLines = nil }, nil},
		{
			"ordering",
			func(c *Content) {
				c.ServiceLines[0].ICD10 = ""
				c.RenderingProvider.NPI = ""
				c.Patient.DOB = ""
			},
			[]string{"patient.dob", "renderingProvider.npi", "serviceLines[0].icd10"},
		},
	}

	s := NewScrubber(nil)
	for _, tt := range tests {
		c := validContent()
		tt.mutate(&c)
		v := s.Validate(c)
		got := fields(v)
		want := tt.want
		if want == nil {
			want = []string{}
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: errors = %v, want %v", tt.name, got, want)
		}
		if v.Valid != (len(want) == 0) {
			t.Errorf("%s: Valid = %v with %d errors", tt.name, v.Valid, len(want))
		}
	}
}

func TestScrubber_BadCPTGoodICD(t *testing.T) {
	c := validContent()
	c.ServiceLines = []ServiceLine{{CPT: "X", ICD10: "Z00.00", Units: 1}}

	v := NewScrubber(nil).Validate(c)
	if len(v.Errors) != 1 || v.Errors[0].Field != "serviceLines[0].cpt" || v.Errors[0].Message != "Invalid CPT format" {
		t.Fatalf("expected a single CPT error, got %+v", v.Errors)
	}
}

func TestScrubber_OnlyMissingDOB(t *testing.T) {
	c := validContent()
	c.Patient.DOB = ""
	c.ServiceLines = c.ServiceLines[:1]

	v := NewScrubber(nil).Validate(c)
	if len(v.Errors) != 1 || v.Errors[0].Field != "patient.dob" || v.Errors[0].Message != "Missing patient DOB" {
		t.Fatalf("expected a single DOB error, got %+v", v.Errors)
	}
}

func TestScrubber_Deterministic(t *testing.T) {
	c := validContent()
	c.Subscriber.MemberID = ""
	c.ServiceLines[0].CPT = "??"

	s := NewScrubber(nil)
	a, b := s.Validate(c), s.Validate(c)
	if a.Valid != b.Valid || !reflect.DeepEqual(a.Errors, b.Errors) {
		t.Errorf("verdicts differ: %+v vs %+v", a, b)
	}
}
