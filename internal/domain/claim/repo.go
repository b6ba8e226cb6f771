package claim

import "context"

// Repository persists claims and denials. Every method is scoped to a
// tenant; rows of another tenant are reported as ErrNotFound.
type Repository interface {
	// GetClaim locks the row for the rest of the transaction when ctx
	// carries one.
	GetClaim(ctx context.Context, tenantID, id int64) (*Claim, error)
	CreateClaim(ctx context.Context, tenantID int64, in NewClaim) (*Claim, error)
	UpdateClaim(ctx context.Context, tenantID, id int64, upd ClaimUpdate) (*Claim, error)
	// ListClaims returns matches newest first and the total match count.
	ListClaims(ctx context.Context, tenantID int64, f ListFilter) ([]*Claim, int, error)
	CountByStatus(ctx context.Context, tenantID int64) (map[string]int, error)

	AddDenial(ctx context.Context, tenantID int64, in NewDenial) (*Denial, error)
	ListDenialsForClaim(ctx context.Context, tenantID, claimID int64) ([]*Denial, error)
}
