package device

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps devices in process memory. It backs the "memory"
// database driver used for single-replica development runs and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]*Device)}
}

// Insert stores a new device.
func (r *MemoryRepository) Insert(_ context.Context, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.ID]; ok {
		return ErrDeviceExists
	}
	r.devices[device.ID] = device.Clone()
	return nil
}

// FindByID retrieves a device by its unique identifier.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.Clone(), nil
}

// Save overwrites an existing device.
func (r *MemoryRepository) Save(_ context.Context, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.ID]; !ok {
		return ErrDeviceNotFound
	}
	r.devices[device.ID] = device.Clone()
	return nil
}

// Delete removes a device by ID.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(r.devices, id)
	return nil
}

// FindAll retrieves all devices ordered by ID.
func (r *MemoryRepository) FindAll(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d.Clone())
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// ExistsByID reports whether a device with the given ID is stored.
func (r *MemoryRepository) ExistsByID(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[id]
	return ok, nil
}

// ListIDs retrieves every device ID in ascending order.
func (r *MemoryRepository) ListIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
