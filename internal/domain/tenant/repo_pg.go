package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcm/rcm/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const profileCols = `id, name, practice_name, npi, tax_id, address, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tenants (name, practice_name, npi, tax_id, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		p.Name, p.PracticeName, p.NPI, p.TaxID, p.Address,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) Get(ctx context.Context, id int64) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+profileCols+` FROM tenants WHERE id = $1`, id))
}

func (r *repoPG) UpdateSettings(ctx context.Context, id int64, s Settings) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE tenants SET practice_name = $2, npi = $3, tax_id = $4, address = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileCols,
		id, s.PracticeName, s.NPI, s.TaxID, s.Address,
	))
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.PracticeName, &p.NPI, &p.TaxID, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
