package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcm/rcm/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const claimCols = `id, tenant_id, patient_id, encounter_id, status, claim_json, version, submitted_at, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var (
		c   Claim
		raw []byte
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.PatientID, &c.EncounterID, &c.Status, &raw, &c.Version, &c.SubmittedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &c.Document); err != nil {
		return nil, fmt.Errorf("decode claim_json of claim %d: %w", c.ID, err)
	}
	return &c, nil
}

func (r *repoPG) GetClaim(ctx context.Context, tenantID, id int64) (*Claim, error) {
	q := `SELECT ` + claimCols + ` FROM claims WHERE tenant_id = $1 AND id = $2`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	return scanClaim(r.conn(ctx).QueryRow(ctx, q, tenantID, id))
}

func (r *repoPG) CreateClaim(ctx context.Context, tenantID int64, in NewClaim) (*Claim, error) {
	doc, err := json.Marshal(in.Document)
	if err != nil {
		return nil, fmt.Errorf("encode claim_json: %w", err)
	}
	c, err := scanClaim(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO claims (tenant_id, patient_id, encounter_id, status, claim_json)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+claimCols,
		tenantID, in.PatientID, in.EncounterID, StatusDraft, doc))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("encounter %d already has a claim: %w", in.EncounterID, ErrConflictingState)
		}
		return nil, err
	}
	return c, nil
}

func (r *repoPG) UpdateClaim(ctx context.Context, tenantID, id int64, upd ClaimUpdate) (*Claim, error) {
	var (
		status *string
		doc    []byte
	)
	if upd.Status != "" {
		status = &upd.Status
	}
	if upd.Document != nil {
		b, err := json.Marshal(upd.Document)
		if err != nil {
			return nil, fmt.Errorf("encode claim_json: %w", err)
		}
		doc = b
	}

	c, err := scanClaim(r.conn(ctx).QueryRow(ctx, `
		UPDATE claims SET
			status       = COALESCE($3, status),
			claim_json   = COALESCE($4::jsonb, claim_json),
			submitted_at = COALESCE($5, submitted_at),
			version      = version + 1,
			updated_at   = NOW()
		WHERE tenant_id = $1 AND id = $2 AND ($6 = 0 OR version = $6)
		RETURNING `+claimCols,
		tenantID, id, status, doc, upd.SubmittedAt, upd.ExpectVersion))
	if !errors.Is(err, ErrNotFound) || upd.ExpectVersion == 0 {
		return c, err
	}

	// Distinguish a missing row from a lost race.
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM claims WHERE tenant_id = $1 AND id = $2)`, tenantID, id,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("claim %d changed since version %d: %w", id, upd.ExpectVersion, ErrConflictingState)
	}
	return nil, ErrNotFound
}

func (r *repoPG) ListClaims(ctx context.Context, tenantID int64, f ListFilter) ([]*Claim, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.HasScrubberErrors {
		// '[{}]' is contained in any array holding at least one object.
		where = append(where, `(claim_json #> '{scrubber,errors}') @> '[{}]'::jsonb`)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + claimCols + ` FROM claims WHERE ` + cond + ` ORDER BY id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		claims = append(claims, c)
	}
	return claims, total, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, tenantID int64) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM claims WHERE tenant_id = $1 GROUP BY status`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) AddDenial(ctx context.Context, tenantID int64, in NewDenial) (*Denial, error) {
	d := &Denial{TenantID: tenantID, ClaimID: in.ClaimID, Reason: in.Reason, Status: in.Status}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO denials (tenant_id, claim_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		tenantID, in.ClaimID, in.Reason, in.Status,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repoPG) ListDenialsForClaim(ctx context.Context, tenantID, claimID int64) ([]*Denial, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, tenant_id, claim_id, reason, status, created_at
		FROM denials WHERE tenant_id = $1 AND claim_id = $2 ORDER BY id`, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Denial
	for rows.Next() {
		var d Denial
		if err := rows.Scan(&d.ID, &d.TenantID, &d.ClaimID, &d.Reason, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
