package audit

import "time"

// Actions recorded in the trail.
const (
	ActionClaimBuilt           = "CLAIM_BUILT"
	ActionClaimScrubbed        = "CLAIM_SCRUBBED"
	ActionClaimAIReviewed      = "CLAIM_AI_REVIEWED"
	ActionAISuggestionsApplied = "AI_SUGGESTIONS_APPLIED"
	ActionClaimSubmitted       = "CLAIM_SUBMITTED"
	ActionClaimStatusUpdated   = "CLAIM_STATUS_UPDATED"
	ActionDenialCreated        = "DENIAL_CREATED"
	ActionClaimDenied          = "CLAIM_DENIED"

	ActionPatientCreated   = "PATIENT_CREATED"
	ActionInsuranceAdded   = "INSURANCE_ADDED"
	ActionEncounterCreated = "ENCOUNTER_CREATED"
	ActionChargeCreated    = "CHARGE_CREATED"
	ActionTenantCreated    = "TENANT_CREATED"
	ActionSettingsUpdated  = "SETTINGS_UPDATED"
)

// Entities an entry may refer to.
const (
	EntityClaim     = "claim"
	EntityDenial    = "denial"
	EntityEncounter = "encounter"
	EntityPatient   = "patient"
	EntityInsurance = "insurance"
	EntityCharge    = "charge"
	EntityTenant    = "tenant"
)

// Entry is one immutable line of the audit trail. ID is assigned by the
// repository in insertion order; EventID is a ULID operators can quote when
// correlating logs with the trail.
type Entry struct {
	ID        int64          `json:"id"`
	EventID   string         `json:"eventId"`
	TenantID  int64          `json:"tenantId"`
	UserID    *int64         `json:"userId"`
	Entity    string         `json:"entity"`
	EntityID  int64          `json:"entityId"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Entity string
	UserID *int64
	Limit  int
	Offset int
}

// DefaultListLimit is the page size when Filter.Limit is unset.
const DefaultListLimit = 50

func (f Filter) matches(e *Entry) bool {
	if f.Entity != "" && e.Entity != f.Entity {
		return false
	}
	if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
		return false
	}
	return true
}

func cloneEntry(e *Entry) *Entry {
	cp := *e
	if e.UserID != nil {
		uid := *e.UserID
		cp.UserID = &uid
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
