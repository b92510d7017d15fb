package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, company_id, actor_id, action, entity, entity_id, meta, occurred_at`

// Repository reads the audit trail.
type Repository interface {
	List(ctx context.Context, req ListRequest, limit, offset int) ([]Entry, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) List(ctx context.Context, req ListRequest, limit, offset int) ([]Entry, error) {
	var (
		where = []string{"company_id = $1"}
		args  = []any{req.CompanyID}
	)
	if req.ActorID > 0 {
		args = append(args, req.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if req.Entity != "" {
		args = append(args, req.Entity)
		where = append(where, fmt.Sprintf("entity = $%d", len(args)))
	}
	if req.Action != "" {
		args = append(args, req.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if !req.From.IsZero() {
		args = append(args, req.From)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !req.To.IsZero() {
		args = append(args, req.To)
		where = append(where, fmt.Sprintf("occurred_at < $%d", len(args)))
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.At); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
