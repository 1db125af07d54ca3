package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, Postgres,
// in-memory) and enables unit testing without database dependencies.
type Repository interface {
	// Insert stores a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Insert(ctx context.Context, device *Device) error

	// FindByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	FindByID(ctx context.Context, id string) (*Device, error)

	// Save overwrites an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Save(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// FindAll retrieves all devices ordered by ID.
	FindAll(ctx context.Context) ([]Device, error)

	// ExistsByID reports whether a device with the given ID is stored.
	ExistsByID(ctx context.Context, id string) (bool, error)

	// ListIDs retrieves every device ID in ascending order.
	ListIDs(ctx context.Context) ([]string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDeviceColumns = `SELECT id, type, name, room, status, parameters FROM devices`

// Insert stores a new device.
func (r *SQLiteRepository) Insert(ctx context.Context, device *Device) error {
	params, err := json.Marshal(device.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, type, name, room, status, parameters, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID,
		string(device.Type),
		device.Name,
		device.Room,
		device.Status,
		string(params),
		now,
		now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// FindByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceColumns+` WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// Save overwrites an existing device.
func (r *SQLiteRepository) Save(ctx context.Context, device *Device) error {
	params, err := json.Marshal(device.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, room = ?, status = ?, parameters = ?, updated_at = ?
		WHERE id = ?`,
		device.Name,
		device.Room,
		device.Status,
		string(params),
		time.Now().UTC().Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return checkAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return checkAffected(result)
}

// FindAll retrieves all devices ordered by ID.
func (r *SQLiteRepository) FindAll(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDeviceColumns+` ORDER BY id`)
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
func (r *SQLiteRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking device exists: %w", err)
	}
	return count > 0, nil
}

// ListIDs retrieves every device ID in ascending order.
func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM devices ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying device ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning device id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device ids: %w", err)
	}
	return ids, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType string
	var params []byte

	if err := scanner.Scan(&d.ID, &deviceType, &d.Name, &d.Room, &d.Status, &params); err != nil {
		return nil, err
	}

	return buildStoredDevice(&d, deviceType, params)
}

// buildStoredDevice attaches the decoded parameter column to a scanned device.
func buildStoredDevice(d *Device, deviceType string, params []byte) (*Device, error) {
	d.Type = DeviceType(deviceType)
	p, err := DecodeParameters(d.Type, params)
	if err != nil {
		return nil, fmt.Errorf("decoding parameters of %s: %w", d.ID, err)
	}
	d.Parameters = p
	return d, nil
}

// checkAffected maps a zero row count to ErrDeviceNotFound.
func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
