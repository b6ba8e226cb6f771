package audit

import (
	"context"
	"errors"
)

var ErrWriteFailed = errors.New("audit: write failed")

// Repository persists entries. Entries are never updated or deleted.
type Repository interface {
	// Append stores e and fills in ID and CreatedAt.
	Append(ctx context.Context, e *Entry) error
	// List returns the tenant's entries newest first, and the total matching.
	List(ctx context.Context, tenantID int64, f Filter) ([]*Entry, int, error)
}
