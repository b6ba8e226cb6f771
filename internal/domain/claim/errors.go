package claim

import (
	"errors"
	"fmt"

	"github.com/rcm/rcm/internal/domain/audit"
	"github.com/rcm/rcm/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("claim: not found")
	ErrInvalidInput       = errors.New("claim: invalid input")
	ErrValidationRequired = errors.New("claim: passing scrubber verdict required")
	ErrConflictingState   = errors.New("claim: conflicting state")

	ErrAuditWriteFailed = audit.ErrWriteFailed
	ErrForbidden        = auth.ErrForbidden
)

// TransitionError reports a status change the state machine does not allow.
// It matches ErrConflictingState.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("claim: cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrConflictingState
}
