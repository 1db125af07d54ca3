package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// Store keys.
const (
	SeenDevicesKey = "seen_devices"
	IntervalsKey   = "device_on_intervals"
)

// EventLogKey is the append-only list of intervals opened for deviceID.
func EventLogKey(deviceID string) string {
	return IntervalsKey + ":" + deviceID
}

// activeStatuses are the statuses counted as usage time. Door locks and
// curtains count locked and closed as active.
var activeStatuses = map[string]bool{
	device.StatusOn:     true,
	device.StatusLocked: true,
	device.StatusClosed: true,
}

// IsActive reports whether status counts as usage time.
func IsActive(status string) bool {
	return activeStatuses[status]
}

// Transition is the outcome of HandleStatusChange.
type Transition struct {
	// Opened is true when a new interval was started.
	Opened bool
	// Closed is true when the open interval was ended; Duration holds its
	// length in seconds.
	Closed   bool
	Duration float64
}

// Tracker records per-device active intervals in a KVStore.
//
// Interval updates are read-modify-write without a lock or compare-and-swap:
// concurrent status changes on the same device can lose an update.
type Tracker struct {
	store KVStore
	now   func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store KVStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// SetClock replaces the time source used for interval boundaries.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// IsSeen reports whether deviceID has been observed before.
func (t *Tracker) IsSeen(ctx context.Context, deviceID string) (bool, error) {
	seen, err := t.store.SIsMember(ctx, SeenDevicesKey, deviceID)
	if err != nil {
		return false, fmt.Errorf("checking seen set: %w", err)
	}
	return seen, nil
}

// MarkSeen records the first observation of deviceID.
func (t *Tracker) MarkSeen(ctx context.Context, deviceID string) error {
	if err := t.store.SAdd(ctx, SeenDevicesKey, deviceID); err != nil {
		return fmt.Errorf("marking device seen: %w", err)
	}
	return nil
}

// RemoveSeen forgets deviceID.
func (t *Tracker) RemoveSeen(ctx context.Context, deviceID string) error {
	if err := t.store.SRem(ctx, SeenDevicesKey, deviceID); err != nil {
		return fmt.Errorf("removing device from seen set: %w", err)
	}
	return nil
}

// Intervals returns the device's interval list, oldest first.
func (t *Tracker) Intervals(ctx context.Context, deviceID string) ([]Interval, error) {
	raw, ok, err := t.store.HGet(ctx, IntervalsKey, deviceID)
	if err != nil {
		return nil, fmt.Errorf("reading intervals: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var intervals []Interval
	if err := json.Unmarshal([]byte(raw), &intervals); err != nil {
		return nil, fmt.Errorf("parsing intervals for device %s: %w", deviceID, err)
	}
	return intervals, nil
}

func (t *Tracker) saveIntervals(ctx context.Context, deviceID string, intervals []Interval) error {
	if intervals == nil {
		intervals = []Interval{}
	}
	data, err := json.Marshal(intervals)
	if err != nil {
		return fmt.Errorf("encoding intervals: %w", err)
	}
	if err := t.store.HSet(ctx, IntervalsKey, deviceID, string(data)); err != nil {
		return fmt.Errorf("writing intervals: %w", err)
	}
	return nil
}

// StartInterval appends an open interval beginning at start and records it
// in the device's event log. It fails with a StateError if the last
// interval is still open.
func (t *Tracker) StartInterval(ctx context.Context, deviceID string, start time.Time) error {
	intervals, err := t.Intervals(ctx, deviceID)
	if err != nil {
		return err
	}
	if n := len(intervals); n > 0 && intervals[n-1].Open() {
		return &StateError{DeviceID: deviceID, Reason: AlreadyOpen}
	}

	interval := Interval{Start: start.UTC()}
	if err := t.saveIntervals(ctx, deviceID, append(intervals, interval)); err != nil {
		return err
	}

	entry, err := json.Marshal(interval)
	if err != nil {
		return fmt.Errorf("encoding interval: %w", err)
	}
	if err := t.store.RPush(ctx, EventLogKey(deviceID), string(entry)); err != nil {
		return fmt.Errorf("appending interval event: %w", err)
	}
	return nil
}

// CloseLastInterval ends the open interval at end and returns its duration
// in seconds.
//
// Returns:
//   - float64: seconds between the interval's start and end
//   - error: *StateError when there are no intervals or the last one is
//     already closed
func (t *Tracker) CloseLastInterval(ctx context.Context, deviceID string, end time.Time) (float64, error) {
	intervals, err := t.Intervals(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if len(intervals) == 0 {
		return 0, &StateError{DeviceID: deviceID, Reason: NoIntervals}
	}

	last := &intervals[len(intervals)-1]
	if !last.Open() {
		return 0, &StateError{DeviceID: deviceID, Reason: AlreadyClosed}
	}

	end = end.UTC()
	last.End = &end
	if err := t.saveIntervals(ctx, deviceID, intervals); err != nil {
		return 0, err
	}
	return last.Duration(end), nil
}

// HandleStatusChange opens or closes an interval for a status transition.
// An interval opens when current is active and the device is new or
// previous was inactive; it closes when previous was active and current
// is not.
//
// Parameters:
//   - deviceID: device whose status changed
//   - previous: status before the change (ignored when isNew)
//   - current: status after the change
//   - isNew: true on the device's first observation
func (t *Tracker) HandleStatusChange(ctx context.Context, deviceID, previous, current string, isNew bool) (Transition, error) {
	var tr Transition
	wasActive := !isNew && IsActive(previous)

	switch {
	case IsActive(current) && !wasActive:
		if err := t.StartInterval(ctx, deviceID, t.now()); err != nil {
			return tr, err
		}
		tr.Opened = true
	case !IsActive(current) && wasActive:
		d, err := t.CloseLastInterval(ctx, deviceID, t.now())
		if err != nil {
			return tr, err
		}
		tr.Closed = true
		tr.Duration = d
	}
	return tr, nil
}

// DeleteDevice closes any open interval, then removes every trace of the
// device from the store. It returns the seconds credited by the closed
// interval, or 0 if none was open.
func (t *Tracker) DeleteDevice(ctx context.Context, deviceID string) (float64, error) {
	duration, err := t.CloseLastInterval(ctx, deviceID, t.now())
	if err != nil && !errors.Is(err, ErrInvalidState) {
		return 0, err
	}

	if err := t.RemoveSeen(ctx, deviceID); err != nil {
		return duration, err
	}
	if err := t.store.HDel(ctx, IntervalsKey, deviceID); err != nil {
		return duration, fmt.Errorf("removing intervals: %w", err)
	}
	if err := t.store.Del(ctx, EventLogKey(deviceID)); err != nil {
		return duration, fmt.Errorf("removing interval events: %w", err)
	}
	return duration, nil
}
