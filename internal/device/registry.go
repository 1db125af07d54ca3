package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified after every successful registry mutation.
// Observers are called synchronously, in registration order, with no
// registry lock held.
type Observer interface {
	DeviceChanged(ctx context.Context, change Change)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, change Change)

// DeviceChanged calls f.
func (f ObserverFunc) DeviceChanged(ctx context.Context, change Change) {
	f(ctx, change)
}

// Registry orchestrates device create/read/update/delete over a Repository.
//
// It holds no device state of its own: replicas share the repository and
// converge through the replication bus, so an in-process cache would go
// stale. Mutations made through Create/Update/Delete are reported to
// observers with OriginLocal; the Apply* variants are used by the bus and
// report OriginReplicated so that outbound publishing can skip them.
//
// All public methods are thread-safe.
type Registry struct {
	repo   Repository
	logger Logger

	observers []Observer
	obsMu     sync.RWMutex
}

// NewRegistry creates a new device registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddObserver registers an observer for completed mutations.
func (r *Registry) AddObserver(o Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, o)
	r.obsMu.Unlock()
}

// GetDevice retrieves a device by ID.
// Returns a *NotFoundError (matching ErrDeviceNotFound) if absent.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	d, err := r.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("loading device %s: %w", id, err)
	}
	return d, nil
}

// ListDevices retrieves all devices.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := r.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// ListIDs retrieves the ids of all devices.
func (r *Registry) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.repo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing device ids: %w", err)
	}
	return ids, nil
}

// Exists reports whether a device with id is stored.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.repo.ExistsByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("checking device %s: %w", id, err)
	}
	return ok, nil
}

// CreateDevice validates and stores a new device, filling omitted
// parameter fields with the type defaults.
//
// Returns:
//   - *Device: the stored device
//   - error: *AlreadyExistsError, *ValidationError, *TypeMismatchError or a storage error
func (r *Registry) CreateDevice(ctx context.Context, d *Device) (*Device, error) {
	return r.create(ctx, d, OriginLocal)
}

// UpdateDevice merges u into the stored device and persists the result.
//
// Returns:
//   - *Device: the stored device after the update
//   - error: *NotFoundError, *ValidationError, *TypeMismatchError or a storage error
func (r *Registry) UpdateDevice(ctx context.Context, id string, u *Update) (*Device, error) {
	return r.update(ctx, id, u, OriginLocal)
}

// DeleteDevice removes a device. Returns a *NotFoundError if absent.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	return r.delete(ctx, id, OriginLocal)
}

// ApplyCreate stores a device received from the message bus.
func (r *Registry) ApplyCreate(ctx context.Context, d *Device) (*Device, error) {
	return r.create(ctx, d, OriginReplicated)
}

// ApplyUpdate applies an update received from the message bus.
func (r *Registry) ApplyUpdate(ctx context.Context, id string, u *Update) (*Device, error) {
	return r.update(ctx, id, u, OriginReplicated)
}

// ApplyDelete applies a delete received from the message bus.
func (r *Registry) ApplyDelete(ctx context.Context, id string) error {
	return r.delete(ctx, id, OriginReplicated)
}

func (r *Registry) create(ctx context.Context, d *Device, origin Origin) (*Device, error) {
	if d == nil {
		return nil, ValidateDevice(nil)
	}

	exists, err := r.repo.ExistsByID(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("checking device %s: %w", d.ID, err)
	}
	if exists {
		return nil, &AlreadyExistsError{ID: d.ID}
	}

	if err := ValidateDevice(d); err != nil {
		return nil, err
	}

	stored := d.Clone()
	stored.Parameters.applyDefaults()

	if err := r.repo.Insert(ctx, stored); err != nil {
		if errors.Is(err, ErrDeviceExists) {
			return nil, &AlreadyExistsError{ID: d.ID}
		}
		return nil, fmt.Errorf("storing device %s: %w", d.ID, err)
	}

	r.logger.Info("device created", "id", stored.ID, "type", stored.Type, "origin", origin)
	r.notify(ctx, Change{Kind: ChangeCreated, Origin: origin, Device: stored.Clone()})
	return stored, nil
}

func (r *Registry) update(ctx context.Context, id string, u *Update, origin Origin) (*Device, error) {
	existing, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, err := Merge(existing, u)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Save(ctx, merged); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("saving device %s: %w", id, err)
	}

	r.logger.Info("device updated", "id", id, "origin", origin)
	r.notify(ctx, Change{
		Kind:     ChangeUpdated,
		Origin:   origin,
		Device:   merged.Clone(),
		Previous: existing,
		Update:   u,
	})
	return merged, nil
}

func (r *Registry) delete(ctx context.Context, id string, origin Origin) error {
	existing, err := r.GetDevice(ctx, id)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("deleting device %s: %w", id, err)
	}

	r.logger.Info("device deleted", "id", id, "origin", origin)
	r.notify(ctx, Change{Kind: ChangeDeleted, Origin: origin, Previous: existing})
	return nil
}

func (r *Registry) notify(ctx context.Context, change Change) {
	r.obsMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.obsMu.RUnlock()

	for _, o := range observers {
		o.DeviceChanged(ctx, change)
	}
}
