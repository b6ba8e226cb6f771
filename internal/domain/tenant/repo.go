package tenant

import "context"

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	Get(ctx context.Context, id int64) (*Profile, error)
	UpdateSettings(ctx context.Context, id int64, s Settings) (*Profile, error)
}
