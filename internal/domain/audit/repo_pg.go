package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

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

const entryCols = `id, event_id, tenant_id, user_id, entity, entity_id, action, metadata, created_at`

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO audit_logs (event_id, tenant_id, user_id, entity, entity_id, action, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		e.EventID, e.TenantID, e.UserID, e.Entity, e.EntityID, e.Action, raw,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *repoPG) List(ctx context.Context, tenantID int64, f Filter) ([]*Entry, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if f.Entity != "" {
		args = append(args, f.Entity)
		where = append(where, fmt.Sprintf("entity = $%d", len(args)))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit, f.Offset)
	rows, err := q.Query(ctx,
		fmt.Sprintf(`SELECT `+entryCols+` FROM audit_logs WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
			cond, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var e Entry
		var entityID *int64
		var raw []byte
		if err := rows.Scan(&e.ID, &e.EventID, &e.TenantID, &e.UserID, &e.Entity, &entityID, &e.Action, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if entityID != nil {
			e.EntityID = *entityID
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata %d: %w", e.ID, err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
