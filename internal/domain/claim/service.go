package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rcm/rcm/internal/domain/audit"
	"github.com/rcm/rcm/internal/domain/encounter"
	"github.com/rcm/rcm/internal/domain/tenant"
	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/metrics"
)

// WorklistLimit caps each worklist.
const WorklistLimit = 100

// SourceRepository is the part of encounter.Repository the lifecycle needs.
type SourceRepository interface {
	GetEncounter(ctx context.Context, tenantID, id int64) (*encounter.Encounter, error)
	GetPatient(ctx context.Context, tenantID, id int64) (*encounter.Patient, error)
	ListInsurances(ctx context.Context, tenantID, patientID int64) ([]*encounter.Insurance, error)
	ListCharges(ctx context.Context, tenantID, encounterID int64) ([]*encounter.Charge, error)
	SetEncounterStatus(ctx context.Context, tenantID, id int64, status string) error
}

// ProfileRepository is the part of tenant.Repository the builder needs.
type ProfileRepository interface {
	Get(ctx context.Context, id int64) (*tenant.Profile, error)
}

// TxRunner runs fn in a unit of work that commits or rolls back as a whole.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditRecorder is implemented by *audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry)
	RecordStrict(ctx context.Context, e audit.Entry) error
}

// Service runs the claim lifecycle. Every mutating operation holds the
// claim's lock for its whole duration.
type Service struct {
	repo     Repository
	sources  SourceRepository
	profiles ProfileRepository
	tx       TxRunner
	audit    AuditRecorder
	advisor  Advisor
	scrubber *Scrubber
	locks    *Locker
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(repo Repository, sources SourceRepository, profiles ProfileRepository, tx TxRunner, rec AuditRecorder) *Service {
	return &Service{
		repo:     repo,
		sources:  sources,
		profiles: profiles,
		tx:       tx,
		audit:    rec,
		scrubber: NewScrubber(nil),
		locks:    NewLocker(),
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
}

// WithAdvisor sets the advisory reviewer. Without one, RunAdvisory stores a
// zero-confidence review.
func (s *Service) WithAdvisor(a Advisor) *Service {
	s.advisor = a
	return s
}

func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.logger = l
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.scrubber = NewScrubber(now)
	return s
}

func lockKey(kind string, tenantID, id int64) string {
	return fmt.Sprintf("%s/%d/%d", kind, tenantID, id)
}

func (s *Service) lockClaim(ctx context.Context, tenantID, id int64) (func(), error) {
	return s.locks.Lock(ctx, lockKey("claim", tenantID, id))
}

func sourceErr(kind string, id int64, err error) error {
	if errors.Is(err, encounter.ErrNotFound) || errors.Is(err, tenant.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return err
}

func entry(caller auth.Caller, entity string, id int64, action string, meta map[string]any) audit.Entry {
	uid := caller.UserID
	return audit.Entry{
		TenantID: caller.TenantID,
		UserID:   &uid,
		Entity:   entity,
		EntityID: id,
		Action:   action,
		Metadata: meta,
	}
}

func (s *Service) getClaim(ctx context.Context, tenantID, id int64) (*Claim, error) {
	if id <= 0 {
		return nil, fmt.Errorf("claim id must be positive: %w", ErrInvalidInput)
	}
	return s.repo.GetClaim(ctx, tenantID, id)
}

func (s *Service) loadSource(ctx context.Context, tenantID, encounterID int64) (Source, error) {
	var src Source
	enc, err := s.sources.GetEncounter(ctx, tenantID, encounterID)
	if err != nil {
		return src, sourceErr("encounter", encounterID, err)
	}
	src.Encounter = enc

	if src.Patient, err = s.sources.GetPatient(ctx, tenantID, enc.PatientID); err != nil {
		return src, sourceErr("patient", enc.PatientID, err)
	}
	insurances, err := s.sources.ListInsurances(ctx, tenantID, enc.PatientID)
	if err != nil {
		return src, err
	}
	if len(insurances) > 0 {
		src.Insurance = insurances[0]
	}
	if src.Charges, err = s.sources.ListCharges(ctx, tenantID, encounterID); err != nil {
		return src, err
	}
	if src.Profile, err = s.profiles.Get(ctx, tenantID); err != nil {
		return src, sourceErr("tenant profile", tenantID, err)
	}
	return src, nil
}

// BuildClaim creates a DRAFT claim from an OPEN encounter and marks the
// encounter CLAIMED.
func (s *Service) BuildClaim(ctx context.Context, encounterID int64) (*Claim, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimBuild)
	if err != nil {
		return nil, err
	}
	if encounterID <= 0 {
		return nil, fmt.Errorf("encounterId is required: %w", ErrInvalidInput)
	}

	unlock, err := s.locks.Lock(ctx, lockKey("encounter", caller.TenantID, encounterID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var c *Claim
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		src, err := s.loadSource(ctx, caller.TenantID, encounterID)
		if err != nil {
			return err
		}
		if src.Encounter.Status != encounter.StatusOpen {
			return fmt.Errorf("encounter %d is %s: %w", encounterID, src.Encounter.Status, ErrConflictingState)
		}
		c, err = s.repo.CreateClaim(ctx, caller.TenantID, NewClaim{
			EncounterID: encounterID,
			PatientID:   src.Patient.ID,
			Document:    Document{Content: BuildContent(src)},
		})
		if err != nil {
			return err
		}
		return sourceErr("encounter", encounterID,
			s.sources.SetEncounterStatus(ctx, caller.TenantID, encounterID, encounter.StatusClaimed))
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, entry(caller, audit.EntityClaim, c.ID, audit.ActionClaimBuilt, map[string]any{
		"encounterId":      encounterID,
		"serviceLineCount": len(c.Document.ServiceLines),
	}))
	return c, nil
}

// RunValidation scrubs the claim's current content and stores the verdict,
// replacing the previous one.
func (s *Service) RunValidation(ctx context.Context, claimID int64) (*Verdict, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimScrub)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.getClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	v := s.scrubber.Validate(c.Document.Content)
	doc := c.Document.clone()
	doc.Scrubber = &v
	if _, err := s.repo.UpdateClaim(ctx, caller.TenantID, claimID, ClaimUpdate{Document: &doc, ExpectVersion: c.Version}); err != nil {
		return nil, err
	}
	metrics.ScrubberRun(v.Valid)

	s.audit.Record(ctx, entry(caller, audit.EntityClaim, claimID, audit.ActionClaimScrubbed, map[string]any{
		"valid":      v.Valid,
		"errorCount": len(v.Errors),
	}))
	return &v, nil
}

// RunAdvisory asks the advisor to review the claim and stores the answer.
// The claim content is never changed; an unavailable or failing advisor
// yields a zero-confidence review instead of an error.
func (s *Service) RunAdvisory(ctx context.Context, claimID int64) (*Advisory, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimAdvise)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.getClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, c)
	if err != nil {
		return nil, err
	}
	review := s.review(ctx, snap)

	doc := c.Document.clone()
	doc.AIReview = review
	if _, err := s.repo.UpdateClaim(ctx, caller.TenantID, claimID, ClaimUpdate{Document: &doc, ExpectVersion: c.Version}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, entry(caller, audit.EntityClaim, claimID, audit.ActionClaimAIReviewed, map[string]any{
		"confidence":      review.Confidence,
		"suggestionCount": len(review.SuggestedChanges),
	}))
	return review, nil
}

func (s *Service) snapshot(ctx context.Context, c *Claim) (Snapshot, error) {
	snap := Snapshot{Claim: c}
	var err error
	if snap.Patient, err = s.sources.GetPatient(ctx, c.TenantID, c.PatientID); err != nil && !errors.Is(err, encounter.ErrNotFound) {
		return snap, err
	}
	if snap.Encounter, err = s.sources.GetEncounter(ctx, c.TenantID, c.EncounterID); err != nil && !errors.Is(err, encounter.ErrNotFound) {
		return snap, err
	}
	if snap.Charges, err = s.sources.ListCharges(ctx, c.TenantID, c.EncounterID); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Service) review(ctx context.Context, snap Snapshot) *Advisory {
	if s.advisor == nil {
		metrics.AdvisoryReview(metrics.AdvisoryDisabled)
		return fallbackAdvisory("AI key not configured; no review executed.", "No AI review executed.", s.now())
	}
	a, err := s.advisor.Review(ctx, snap)
	if err != nil || a == nil {
		s.logger.Warn().Err(err).
			Int64("tenant_id", snap.Claim.TenantID).
			Int64("claim_id", snap.Claim.ID).
			Msg("advisory review failed")
		metrics.AdvisoryReview(metrics.AdvisoryFallback)
		return fallbackAdvisory("AI review failed; please try again.", "AI service unavailable or returned invalid output.", s.now())
	}
	metrics.AdvisoryReview(metrics.AdvisoryOK)
	return a
}

// ApplyAdvisorySuggestions replaces top-level content keys of a DRAFT claim
// with the given values. When anything changed the stored verdict is
// dropped, so the claim must be scrubbed again before submission.
func (s *Service) ApplyAdvisorySuggestions(ctx context.Context, claimID int64, updates map[string]json.RawMessage) (*Claim, error) {
	caller, err := auth.Authorize(ctx, auth.ActionApplySuggestions)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("updates must not be empty: %w", ErrInvalidInput)
	}
	requested := sortedKeys(updates)
	for _, k := range requested {
		if !isContentKey(k) {
			return nil, fmt.Errorf("unknown key %q: %w", k, ErrInvalidInput)
		}
	}

	unlock, err := s.lockClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.getClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusDraft {
		return nil, fmt.Errorf("claim %d is %s, only DRAFT claims can be edited: %w", claimID, c.Status, ErrConflictingState)
	}

	content, changed, err := mergeContent(c.Document.Content, updates)
	if err != nil {
		return nil, err
	}
	doc := c.Document.clone()
	doc.Content = content
	if len(changed) > 0 {
		doc.Scrubber = nil
	}
	updated, err := s.repo.UpdateClaim(ctx, caller.TenantID, claimID, ClaimUpdate{Document: &doc, ExpectVersion: c.Version})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, entry(caller, audit.EntityClaim, claimID, audit.ActionAISuggestionsApplied, map[string]any{
		"keys":      changed,
		"requested": requested,
	}))
	return updated, nil
}

// Submit moves a DRAFT claim with a passing verdict to SUBMITTED.
func (s *Service) Submit(ctx context.Context, claimID int64) (*Claim, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimSubmit)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.getClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	upd, err := Transition(c, StatusSubmitted, caller, s.now())
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateClaim(ctx, caller.TenantID, claimID, upd)
	if err != nil {
		return nil, err
	}
	metrics.ClaimTransition(c.Status, updated.Status)

	s.audit.Record(ctx, entry(caller, audit.EntityClaim, claimID, audit.ActionClaimSubmitted, map[string]any{
		"from":        c.Status,
		"submittedAt": updated.SubmittedAt,
	}))
	return updated, nil
}

// SetOutcome records the payer's answer on a SUBMITTED claim.
func (s *Service) SetOutcome(ctx context.Context, claimID int64, status string) (*Claim, error) {
	caller, err := auth.Authorize(ctx, auth.ActionSetOutcome)
	if err != nil {
		return nil, err
	}
	if status != StatusAccepted && status != StatusRejected {
		return nil, fmt.Errorf("status must be %s or %s: %w", StatusAccepted, StatusRejected, ErrInvalidInput)
	}
	unlock, err := s.lockClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.getClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}
	upd, err := Transition(c, status, caller, s.now())
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateClaim(ctx, caller.TenantID, claimID, upd)
	if err != nil {
		return nil, err
	}
	metrics.ClaimTransition(c.Status, status)

	s.audit.Record(ctx, entry(caller, audit.EntityClaim, claimID, audit.ActionClaimStatusUpdated, map[string]any{
		"from":   c.Status,
		"status": status,
	}))
	return updated, nil
}

type DenialInput struct {
	ClaimID int64  `json:"claimId"`
	Reason  string `json:"reason"`
	Status  string `json:"status"`
}

// RecordDenial stores a denial and forces the claim to DENIED, whatever its
// status. The denial, the status change and both audit entries commit
// together or not at all.
func (s *Service) RecordDenial(ctx context.Context, in DenialInput) (*Denial, error) {
	caller, err := auth.Authorize(ctx, auth.ActionDenialCreate)
	if err != nil {
		return nil, err
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.ClaimID <= 0 || in.Reason == "" {
		return nil, fmt.Errorf("claimId and reason are required: %w", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = DenialOpen
	}
	if !validDenialStatus(in.Status) {
		return nil, fmt.Errorf("unknown denial status %q: %w", in.Status, ErrInvalidInput)
	}

	unlock, err := s.lockClaim(ctx, caller.TenantID, in.ClaimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		denial *Denial
		from   string
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.getClaim(ctx, caller.TenantID, in.ClaimID)
		if err != nil {
			return err
		}
		from = c.Status
		upd, err := Transition(c, StatusDenied, caller, s.now())
		if err != nil {
			return err
		}
		if denial, err = s.repo.AddDenial(ctx, caller.TenantID, NewDenial{ClaimID: c.ID, Reason: in.Reason, Status: in.Status}); err != nil {
			return err
		}
		if _, err := s.repo.UpdateClaim(ctx, caller.TenantID, c.ID, upd); err != nil {
			return err
		}
		if err := s.audit.RecordStrict(ctx, entry(caller, audit.EntityDenial, denial.ID, audit.ActionDenialCreated, map[string]any{
			"claimId": c.ID,
			"status":  denial.Status,
		})); err != nil {
			return err
		}
		return s.audit.RecordStrict(ctx, entry(caller, audit.EntityClaim, c.ID, audit.ActionClaimDenied, map[string]any{
			"from":     from,
			"denialId": denial.ID,
		}))
	})
	if err != nil {
		return nil, err
	}
	metrics.ClaimTransition(from, StatusDenied)
	return denial, nil
}

// Detail is a claim with the records it was built from and its denials.
type Detail struct {
	Claim     *Claim               `json:"claim"`
	Patient   *encounter.Patient   `json:"patient"`
	Encounter *encounter.Encounter `json:"encounter"`
	Charges   []*encounter.Charge  `json:"charges"`
	Denials   []*Denial            `json:"denials"`
}

func (s *Service) GetClaim(ctx context.Context, claimID int64) (*Detail, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, err
	}
	c, err := s.getClaim(ctx, caller.TenantID, claimID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Claim: c}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.snapshot(gctx, c)
		d.Patient, d.Encounter, d.Charges = snap.Patient, snap.Encounter, snap.Charges
		return err
	})
	g.Go(func() error {
		var err error
		d.Denials, err = s.repo.ListDenialsForClaim(gctx, caller.TenantID, c.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if d.Charges == nil {
		d.Charges = []*encounter.Charge{}
	}
	if d.Denials == nil {
		d.Denials = []*Denial{}
	}
	return d, nil
}

func (s *Service) ListClaims(ctx context.Context, f ListFilter) ([]*Claim, int, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, fmt.Errorf("unknown status %q: %w", f.Status, ErrInvalidInput)
	}
	return s.repo.ListClaims(ctx, caller.TenantID, f)
}

type WorklistItem struct {
	*Claim
	Patient *encounter.Patient `json:"patient"`
}

type Worklist struct {
	Items []WorklistItem `json:"items"`
	Total int            `json:"total"`
}

type Worklists struct {
	Draft          Worklist `json:"draft"`
	Submitted      Worklist `json:"submitted"`
	Rejected       Worklist `json:"rejected"`
	Denied         Worklist `json:"denied"`
	ScrubberErrors Worklist `json:"scrubberErrors"`
}

// Worklists loads the per-status queues and the claims whose last scrub
// failed, each newest first and capped at WorklistLimit.
func (s *Service) Worklists(ctx context.Context) (*Worklists, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, err
	}

	out := &Worklists{}
	queues := []struct {
		filter ListFilter
		dst    *Worklist
	}{
		{ListFilter{Status: StatusDraft}, &out.Draft},
		{ListFilter{Status: StatusSubmitted}, &out.Submitted},
		{ListFilter{Status: StatusRejected}, &out.Rejected},
		{ListFilter{Status: StatusDenied}, &out.Denied},
		{ListFilter{HasScrubberErrors: true}, &out.ScrubberErrors},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		q := q
		g.Go(func() error {
			w, err := s.worklist(gctx, caller.TenantID, q.filter)
			*q.dst = w
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) worklist(ctx context.Context, tenantID int64, f ListFilter) (Worklist, error) {
	f.Limit = WorklistLimit
	claims, total, err := s.repo.ListClaims(ctx, tenantID, f)
	if err != nil {
		return Worklist{}, err
	}

	patients := make(map[int64]*encounter.Patient)
	items := make([]WorklistItem, 0, len(claims))
	for _, c := range claims {
		p, ok := patients[c.PatientID]
		if !ok {
			p, err = s.sources.GetPatient(ctx, tenantID, c.PatientID)
			if err != nil && !errors.Is(err, encounter.ErrNotFound) {
				return Worklist{}, err
			}
			patients[c.PatientID] = p
		}
		items = append(items, WorklistItem{Claim: c, Patient: p})
	}
	return Worklist{Items: items, Total: total}, nil
}

type Summary struct {
	TotalClaims         int     `json:"totalClaims"`
	DraftClaims         int     `json:"draftClaims"`
	SubmittedClaims     int     `json:"submittedClaims"`
	AcceptedClaims      int     `json:"acceptedClaims"`
	RejectedClaims      int     `json:"rejectedClaims"`
	DeniedClaims        int     `json:"deniedClaims"`
	FirstPassAcceptance float64 `json:"firstPassAcceptance"`
}

// Summary counts claims per status. FirstPassAcceptance is
// accepted / (submitted + accepted), or 0 when both are zero.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	caller, err := auth.Authorize(ctx, auth.ActionClaimRead)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, caller.TenantID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		DraftClaims:     counts[StatusDraft],
		SubmittedClaims: counts[StatusSubmitted],
		AcceptedClaims:  counts[StatusAccepted],
		RejectedClaims:  counts[StatusRejected],
		DeniedClaims:    counts[StatusDenied],
	}
	for _, n := range counts {
		sum.TotalClaims += n
	}
	if den := sum.SubmittedClaims + sum.AcceptedClaims; den > 0 {
		sum.FirstPassAcceptance = float64(sum.AcceptedClaims) / float64(den)
	}
	return sum, nil
}
