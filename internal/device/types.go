package device

import "slices"

// DeviceType classifies a device and selects its parameter variant and
// status vocabulary.
type DeviceType string

// Supported device types.
const (
	TypeLight          DeviceType = "light"
	TypeWaterHeater    DeviceType = "water_heater"
	TypeAirConditioner DeviceType = "air_conditioner"
	TypeDoorLock       DeviceType = "door_lock"
	TypeCurtain        DeviceType = "curtain"
)

// AllDeviceTypes returns every supported device type in a stable order.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		TypeLight,
		TypeWaterHeater,
		TypeAirConditioner,
		TypeDoorLock,
		TypeCurtain,
	}
}

// Valid reports whether t is one of the supported device types.
func (t DeviceType) Valid() bool {
	return slices.Contains(AllDeviceTypes(), t)
}

// Device statuses.
const (
	StatusOn       = "on"
	StatusOff      = "off"
	StatusLocked   = "locked"
	StatusUnlocked = "unlocked"
	StatusOpen     = "open"
	StatusClosed   = "closed"
)

// Device is a single smart-home device as stored and replicated.
//
// Invariant: Parameters is never nil for a stored device and its
// DeviceType always equals Type.
type Device struct {
	ID         string     `json:"id"`
	Type       DeviceType `json:"type"`
	Name       string     `json:"name"`
	Room       string     `json:"room"`
	Status     string     `json:"status"`
	Parameters Parameters `json:"parameters"`
}

// Clone returns a deep copy of the device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	c := *d
	if d.Parameters != nil {
		c.Parameters = d.Parameters.clone()
	}
	return &c
}

// UnmarshalJSON decodes a device, resolving the parameter variant from the
// payload's own type field.
func (d *Device) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeDevice(data)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// Update is a partial change to a stored device. Nil fields are left
// unchanged. Updates carry no type of their own; Parameters must match the
// type of the device being updated.
type Update struct {
	Name       *string    `json:"name,omitempty"`
	Room       *string    `json:"room,omitempty"`
	Status     *string    `json:"status,omitempty"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *Update) IsEmpty() bool {
	return u == nil || (u.Name == nil && u.Room == nil && u.Status == nil && u.Parameters == nil)
}

// StatusChanged reports whether the update sets a status different from current.
func (u *Update) StatusChanged(current string) bool {
	return u != nil && u.Status != nil && *u.Status != current
}

// ChangeKind names the kind of registry mutation.
type ChangeKind string

// Registry mutation kinds.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Origin tells observers where a mutation came from.
type Origin int

const (
	// OriginLocal marks mutations requested through this replica's API.
	OriginLocal Origin = iota
	// OriginReplicated marks mutations received from the message bus.
	OriginReplicated
)

// String returns the origin name used in logs.
func (o Origin) String() string {
	if o == OriginReplicated {
		return "replicated"
	}
	return "local"
}

// Change describes a completed registry mutation.
//
// Device is the stored state after the change (nil for deletes). Previous is
// the state before it (nil for creates). Update is set for updates only.
type Change struct {
	Kind     ChangeKind
	Origin   Origin
	Device   *Device
	Previous *Device
	Update   *Update
}

// DeviceID returns the id of the device the change concerns.
func (c Change) DeviceID() string {
	if c.Device != nil {
		return c.Device.ID
	}
	if c.Previous != nil {
		return c.Previous.ID
	}
	return ""
}

// ptr returns a pointer to v.
func ptr[T any](v T) *T {
	return &v
}
