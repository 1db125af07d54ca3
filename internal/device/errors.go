package device

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrTypeMismatch is returned when update parameters belong to another device type.
	ErrTypeMismatch = errors.New("device: parameter type mismatch")
)

// ValidationError carries every validation failure found for a request.
// It matches ErrInvalidDevice with errors.Is.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

// Is reports whether target is ErrInvalidDevice.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDevice
}

// newValidationError returns nil when there are no messages.
func newValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// TypeMismatchError is returned when parameters do not belong to the
// expected device type. It matches ErrTypeMismatch with errors.Is.
type TypeMismatchError struct {
	Expected DeviceType
	Got      DeviceType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Incorrect parameters for device type %s", e.Expected)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// NotFoundError names the missing device. It matches ErrDeviceNotFound.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Device ID %s not found", e.ID)
}

// Is reports whether target is ErrDeviceNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// AlreadyExistsError names the duplicate device. It matches ErrDeviceExists.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("Device ID %s already exists", e.ID)
}

// Is reports whether target is ErrDeviceExists.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrDeviceExists
}
