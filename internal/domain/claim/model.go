package claim

import (
	"time"
)

// Claim statuses.
const (
	StatusDraft     = "DRAFT"
	StatusSubmitted = "SUBMITTED"
	StatusAccepted  = "ACCEPTED"
	StatusRejected  = "REJECTED"
	StatusDenied    = "DENIED"
)

// Denial statuses.
const (
	DenialOpen       = "OPEN"
	DenialAppealed   = "APPEALED"
	DenialResolved   = "RESOLVED"
	DenialWrittenOff = "WRITTEN_OFF"
)

func validDenialStatus(s string) bool {
	switch s {
	case DenialOpen, DenialAppealed, DenialResolved, DenialWrittenOff:
		return true
	}
	return false
}

func validStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusAccepted, StatusRejected, StatusDenied:
		return true
	}
	return false
}

type BillingProvider struct {
	NPI   string `json:"npi"`
	TaxID string `json:"taxId"`
}

type RenderingProvider struct {
	NPI string `json:"npi"`
}

type Subscriber struct {
	Name     string `json:"name"`
	MemberID string `json:"memberId"`
	DOB      string `json:"dob"`
}

type PatientInfo struct {
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

// ServiceLine is one billed procedure.
type ServiceLine struct {
	CPT      string  `json:"cpt"`
	ICD10    string  `json:"icd10"`
	Modifier string  `json:"modifier"`
	Units    int     `json:"units"`
	Charge   float64 `json:"charge"`
}

// Content is the billable part of a claim, in the internal 837P layout.
type Content struct {
	BillingProvider   BillingProvider   `json:"billingProvider"`
	RenderingProvider RenderingProvider `json:"renderingProvider"`
	Subscriber        Subscriber        `json:"subscriber"`
	Patient           PatientInfo       `json:"patient"`
	ServiceLines      []ServiceLine     `json:"serviceLines"`
}

// contentKeys are the top-level keys of Content that suggestions may replace.
var contentKeys = []string{"billingProvider", "renderingProvider", "subscriber", "patient", "serviceLines"}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Verdict is the result of one scrubber run over the content as it was at
// RanAt. Editing the content discards it.
type Verdict struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
	RanAt  time.Time    `json:"ranAt"`
}

// Passing reports whether v allows submission.
func (v *Verdict) Passing() bool {
	return v != nil && v.Valid
}

// Advisory is the last advisory review of a claim. It is informational and
// never applied automatically.
type Advisory struct {
	Summary          string       `json:"summary"`
	Risks            []string     `json:"risks"`
	SuggestedChanges []FieldError `json:"suggestedChanges"`
	Confidence       float64      `json:"confidence"`
	RanAt            time.Time    `json:"ranAt"`
}

// Document is what is stored as claim_json: the content keys at the top
// level plus the last scrubber verdict and advisory review.
type Document struct {
	Content
	Scrubber *Verdict  `json:"scrubber,omitempty"`
	AIReview *Advisory `json:"aiReview,omitempty"`
}

func (d Document) clone() Document {
	out := d
	out.ServiceLines = append([]ServiceLine(nil), d.ServiceLines...)
	if d.Scrubber != nil {
		v := *d.Scrubber
		v.Errors = append([]FieldError(nil), d.Scrubber.Errors...)
		out.Scrubber = &v
	}
	if d.AIReview != nil {
		a := *d.AIReview
		a.Risks = append([]string(nil), d.AIReview.Risks...)
		a.SuggestedChanges = append([]FieldError(nil), d.AIReview.SuggestedChanges...)
		out.AIReview = &a
	}
	return out
}

type Claim struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	PatientID   int64      `json:"patient_id"`
	EncounterID int64      `json:"encounter_id"`
	Status      string     `json:"status"`
	Document    Document   `json:"claim_json"`
	Version     int        `json:"version"`
	SubmittedAt *time.Time `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func cloneClaim(c Claim) Claim {
	out := c
	out.Document = c.Document.clone()
	if c.SubmittedAt != nil {
		t := *c.SubmittedAt
		out.SubmittedAt = &t
	}
	return out
}

func (c *Claim) hasScrubberErrors() bool {
	return c.Document.Scrubber != nil && len(c.Document.Scrubber.Errors) > 0
}

type Denial struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	ClaimID   int64     `json:"claim_id"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewClaim is the input of Repository.CreateClaim. Claims always start DRAFT.
type NewClaim struct {
	EncounterID int64
	PatientID   int64
	Document    Document
}

// ClaimUpdate is a partial update. Zero fields are left unchanged. A
// non-zero ExpectVersion makes the write fail with ErrConflictingState when
// the stored version differs.
type ClaimUpdate struct {
	Status        string
	Document      *Document
	SubmittedAt   *time.Time
	ExpectVersion int
}

type NewDenial struct {
	ClaimID int64
	Reason  string
	Status  string
}

// ListFilter narrows ListClaims. Zero values mean "any"; a zero Limit
// returns every match.
type ListFilter struct {
	Status            string
	HasScrubberErrors bool
	Limit             int
	Offset            int
}
