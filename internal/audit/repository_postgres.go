package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores audit entries in the shared Postgres database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository over a pool whose schema has
// been created by postgres.EnsureSchema.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *PostgresRepository) Create(ctx context.Context, e *Entry) error {
	fillDefaults(e)

	details, err := marshalDetails(e.Details)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, action, device_id, device_type, origin, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Action, e.DeviceID, e.DeviceType, e.Origin, nullableString(e.Actor), details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.normalize()
	where, args := whereClause(filter, func(n int) string { return "$" + strconv.Itoa(n) })

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(
		"SELECT id, action, device_id, device_type, origin, COALESCE(actor, ''), COALESCE(details::text, ''), created_at "+
			"FROM audit_logs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, n+1, n+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var details string
		if err := rows.Scan(&e.ID, &e.Action, &e.DeviceID, &e.DeviceType,
			&e.Origin, &e.Actor, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Details = unmarshalDetails(details)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}
