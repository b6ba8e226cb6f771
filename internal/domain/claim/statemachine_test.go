package claim

import (
	"errors"
	"testing"
	"time"

	"github.com/rcm/rcm/internal/platform/auth"
)

var (
	admin  = auth.Caller{UserID: 1, Role: auth.RoleAdmin, TenantID: 1}
	biller = auth.Caller{UserID: 2, Role: auth.RoleBiller, TenantID: 1}
)

func claimIn(status string, v *Verdict) *Claim {
	return &Claim{ID: 9, TenantID: 1, Status: status, Version: 3, Document: Document{Scrubber: v}}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusAccepted, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusDraft, StatusAccepted, false},
		{StatusAccepted, StatusSubmitted, false},
		{StatusRejected, StatusAccepted, false},
		{StatusDenied, StatusSubmitted, false},
		{StatusDraft, StatusDenied, true},
		{StatusAccepted, StatusDenied, true},
		{StatusDenied, StatusDenied, true},
		{"BOGUS", StatusDenied, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransition_Submit(t *testing.T) {
	c := claimIn(StatusDraft, &Verdict{Valid: true})
	upd, err := Transition(c, StatusSubmitted, biller, fixedNow)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if upd.Status != StatusSubmitted || upd.ExpectVersion != 3 {
		t.Errorf("unexpected update %+v", upd)
	}
	if upd.SubmittedAt == nil || !upd.SubmittedAt.Equal(fixedNow) {
		t.Errorf("expected SubmittedAt to be stamped, got %v", upd.SubmittedAt)
	}
	if c.Status != StatusDraft {
		t.Error("Transition must not modify the claim")
	}
}

func TestTransition_SubmitKeepsFirstSubmittedAt(t *testing.T) {
	c := claimIn(StatusDraft, &Verdict{Valid: true})
	earlier := fixedNow.Add(-24 * time.Hour)
	c.SubmittedAt = &earlier

	upd, err := Transition(c, StatusSubmitted, biller, fixedNow)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if upd.SubmittedAt != nil {
		t.Errorf("SubmittedAt must only be set on first submission, got %v", upd.SubmittedAt)
	}
}

func TestTransition_SubmitRequiresPassingVerdict(t *testing.T) {
	verdicts := map[string]*Verdict{
		"absent":  nil,
		"failing": {Valid: false, Errors: []FieldError{{Field: "patient.dob"}}},
	}
	for name, v := range verdicts {
		_, err := Transition(claimIn(StatusDraft, v), StatusSubmitted, admin, fixedNow)
		if !errors.Is(err, ErrValidationRequired) {
			t.Errorf("%s: expected ErrValidationRequired, got %v", name, err)
		}
	}
}

func TestTransition_Outcome(t *testing.T) {
	if _, err := Transition(claimIn(StatusSubmitted, nil), StatusAccepted, admin, fixedNow); err != nil {
		t.Errorf("admin accept: %v", err)
	}
	if _, err := Transition(claimIn(StatusSubmitted, nil), StatusRejected, biller, fixedNow); !errors.Is(err, ErrConflictingState) {
		t.Errorf("expected ErrConflictingState for biller, got %v", err)
	}

	_, err := Transition(claimIn(StatusDraft, nil), StatusAccepted, admin, fixedNow)
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusDraft || te.To != StatusAccepted {
		t.Fatalf("expected TransitionError DRAFT->ACCEPTED, got %v", err)
	}
	if !errors.Is(err, ErrConflictingState) {
		t.Error("TransitionError must match ErrConflictingState")
	}
}

func TestTransition_DeniedFromAnyStatus(t *testing.T) {
	for _, s := range []string{StatusDraft, StatusSubmitted, StatusAccepted, StatusRejected, StatusDenied} {
		upd, err := Transition(claimIn(s, nil), StatusDenied, biller, fixedNow)
		if err != nil {
			t.Errorf("%s -> DENIED: %v", s, err)
			continue
		}
		if upd.Status != StatusDenied || upd.SubmittedAt != nil {
			t.Errorf("%s -> DENIED: unexpected update %+v", s, upd)
		}
	}
}
