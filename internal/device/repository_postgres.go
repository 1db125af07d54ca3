package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresRepository implements Repository on a shared Postgres database.
// Replicas pointed at the same database see one device set.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository over an open pool whose schema
// has been created by postgres.EnsureSchema.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert stores a new device.
func (r *PostgresRepository) Insert(ctx context.Context, device *Device) error {
	params, err := json.Marshal(device.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO devices (id, type, name, room, status, parameters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		device.ID, string(device.Type), device.Name, device.Room, device.Status, params,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// FindByID retrieves a device by its unique identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Device, error) {
	row := r.pool.QueryRow(ctx, selectDeviceColumns+` WHERE id = $1`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// Save overwrites an existing device.
func (r *PostgresRepository) Save(ctx context.Context, device *Device) error {
	params, err := json.Marshal(device.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE devices
		SET name = $1, room = $2, status = $3, parameters = $4, updated_at = now()
		WHERE id = $5`,
		device.Name, device.Room, device.Status, params, device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// FindAll retrieves all devices ordered by ID.
func (r *PostgresRepository) FindAll(ctx context.Context) ([]Device, error) {
	rows, err := r.pool.Query(ctx, selectDeviceColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// ExistsByID reports whether a device with the given ID is stored.
func (r *PostgresRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking device exists: %w", err)
	}
	return exists, nil
}

// ListIDs retrieves every device ID in ascending order.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying device ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting device ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
