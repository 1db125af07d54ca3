package usage

import (
	"errors"
	"fmt"
)

// ErrInvalidState is matched by every StateError.
var ErrInvalidState = errors.New("usage: invalid interval state")

// StateError reports an interval operation that does not fit the device's
// current interval list.
type StateError struct {
	DeviceID string
	Reason   StateReason
}

// StateReason identifies which interval invariant blocked the operation.
type StateReason int

const (
	// NoIntervals means the device has no recorded intervals.
	NoIntervals StateReason = iota
	// AlreadyClosed means the last interval already has an end.
	AlreadyClosed
	// AlreadyOpen means the last interval is still open.
	AlreadyOpen
)

func (e *StateError) Error() string {
	switch e.Reason {
	case NoIntervals:
		return fmt.Sprintf("No intervals found for device %s", e.DeviceID)
	case AlreadyClosed:
		return fmt.Sprintf("Last interval already closed for device %s", e.DeviceID)
	default:
		return fmt.Sprintf("Last interval still open for device %s", e.DeviceID)
	}
}

// Is reports whether target is ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
