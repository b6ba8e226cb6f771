package claim

import (
	"fmt"
	"time"

	"github.com/rcm/rcm/internal/platform/auth"
)

// transitions lists the moves reachable by request. DENIED is absent: it is
// forced by recording a denial and is reachable from every status.
var transitions = map[string][]string{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusAccepted, StatusRejected},
}

// CanTransition reports whether from -> to is a modelled transition.
func CanTransition(from, to string) bool {
	if to == StatusDenied {
		return validStatus(from)
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition checks moving c to status `to` on behalf of actor and returns
// the update that performs it, guarded by c's version. c is not modified.
//
// The DENIED transition must only be requested together with the insert of
// a Denial in the same unit of work.
func Transition(c *Claim, to string, actor auth.Caller, now time.Time) (ClaimUpdate, error) {
	if !CanTransition(c.Status, to) {
		return ClaimUpdate{}, &TransitionError{From: c.Status, To: to}
	}
	upd := ClaimUpdate{Status: to, ExpectVersion: c.Version}

	switch to {
	case StatusSubmitted:
		if !c.Document.Scrubber.Passing() {
			return ClaimUpdate{}, fmt.Errorf("claim %d: %w", c.ID, ErrValidationRequired)
		}
		if c.SubmittedAt == nil {
			ts := now.UTC()
			upd.SubmittedAt = &ts
		}
	case StatusAccepted, StatusRejected:
		// Callers are authorized by policy first; a non-admin reaching here
		// fails the precondition like any other illegal move.
		if !actor.IsAdmin() {
			return ClaimUpdate{}, &TransitionError{From: c.Status, To: to}
		}
	}
	return upd, nil
}
