package usage

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout is UTC with microseconds and an explicit +00:00 offset.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Interval is one continuous active period. End is nil while it is open.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Open reports whether the interval has no end yet.
func (i Interval) Open() bool {
	return i.End == nil
}

// Duration returns the length in seconds at millisecond precision; an open
// interval is measured up to now.
func (i Interval) Duration(now time.Time) float64 {
	end := now
	if i.End != nil {
		end = *i.End
	}
	return float64(end.Sub(i.Start).Milliseconds()) / 1000
}

// MarshalJSON encodes the interval as a [start, end|null] pair.
func (i Interval) MarshalJSON() ([]byte, error) {
	pair := [2]*string{ptr(formatTimestamp(i.Start)), nil}
	if i.End != nil {
		pair[1] = ptr(formatTimestamp(*i.End))
	}
	return json.Marshal(pair)
}

// UnmarshalJSON decodes a [start, end|null] pair. Any RFC 3339 timestamp is
// accepted.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var pair []*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 || pair[0] == nil {
		return fmt.Errorf("interval must be a [start, end] pair, got %s", data)
	}

	start, err := time.Parse(time.RFC3339Nano, *pair[0])
	if err != nil {
		return fmt.Errorf("parsing interval start: %w", err)
	}
	i.Start = start.UTC()
	i.End = nil

	if pair[1] != nil {
		end, err := time.Parse(time.RFC3339Nano, *pair[1])
		if err != nil {
			return fmt.Errorf("parsing interval end: %w", err)
		}
		end = end.UTC()
		i.End = &end
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(timestampLayout)
}

func ptr[T any](v T) *T {
	return &v
}
