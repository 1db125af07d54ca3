package usage

import (
	"context"
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestTracker returns a tracker whose clock is advanced by the caller.
func newTestTracker() (*Tracker, *MemoryStore, *time.Time) {
	store := NewMemoryStore()
	tr := NewTracker(store)
	now := t0
	tr.now = func() time.Time { return now }
	return tr, store, &now
}

func TestCloseLastIntervalStateErrors(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker()

	_, err := tr.CloseLastInterval(ctx, "light01", t0)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("CloseLastInterval() error = %v, want ErrInvalidState", err)
	}
	if got, want := err.Error(), "No intervals found for device light01"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if err := tr.StartInterval(ctx, "light01", t0); err != nil {
		t.Fatalf("StartInterval() error = %v", err)
	}
	if _, err := tr.CloseLastInterval(ctx, "light01", t0.Add(time.Minute)); err != nil {
		t.Fatalf("CloseLastInterval() error = %v", err)
	}

	_, err = tr.CloseLastInterval(ctx, "light01", t0.Add(2*time.Minute))
	if got, want := err.Error(), "Last interval already closed for device light01"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStartIntervalRejectsSecondOpen(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker()

	if err := tr.StartInterval(ctx, "light01", t0); err != nil {
		t.Fatalf("StartInterval() error = %v", err)
	}
	if err := tr.StartInterval(ctx, "light01", t0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("StartInterval() twice error = %v, want ErrInvalidState", err)
	}
}

func TestOnOffClosesOpenInterval(t *testing.T) {
	ctx := context.Background()
	tr, store, now := newTestTracker()

	got, err := tr.HandleStatusChange(ctx, "light01", "", "on", true)
	if err != nil {
		t.Fatalf("HandleStatusChange(new, on) error = %v", err)
	}
	if !got.Opened || got.Closed {
		t.Errorf("HandleStatusChange(new, on) = %+v, want opened", got)
	}

	*now = t0.Add(90*time.Second + 250*time.Millisecond)
	got, err = tr.HandleStatusChange(ctx, "light01", "on", "off", false)
	if err != nil {
		t.Fatalf("HandleStatusChange(on, off) error = %v", err)
	}
	if !got.Closed || got.Duration != 90.25 {
		t.Errorf("HandleStatusChange(on, off) = %+v, want closed after 90.25s", got)
	}

	intervals, err := tr.Intervals(ctx, "light01")
	if err != nil {
		t.Fatalf("Intervals() error = %v", err)
	}
	if len(intervals) != 1 || !intervals[0].Start.Equal(t0) || intervals[0].End == nil || !intervals[0].End.Equal(*now) {
		t.Errorf("Intervals() = %+v, want one [T0, T1] interval", intervals)
	}

	raw, _, _ := store.HGet(ctx, IntervalsKey, "light01")
	want := `[["2026-03-01T12:00:00.000000+00:00","2026-03-01T12:01:30.250000+00:00"]]`
	if raw != want {
		t.Errorf("stored intervals = %s, want %s", raw, want)
	}

	log := store.List(EventLogKey("light01"))
	if len(log) != 1 || log[0] != `["2026-03-01T12:00:00.000000+00:00",null]` {
		t.Errorf("event log = %v", log)
	}
}

func TestHandleStatusChangeTransitions(t *testing.T) {
	tests := []struct {
		name       string
		seedOpen   bool
		previous   string
		current    string
		isNew      bool
		wantOpened bool
		wantClosed bool
	}{
		{"new device off", false, "", "off", true, false, false},
		{"new door locked", false, "", "locked", true, true, false},
		{"new curtain closed", false, "", "closed", true, true, false},
		{"off to on", false, "off", "on", false, true, false},
		{"unlocked to locked", false, "unlocked", "locked", false, true, false},
		{"on to on", true, "on", "on", false, false, false},
		{"locked to unlocked", true, "locked", "unlocked", false, false, true},
		{"closed to open", true, "closed", "open", false, false, true},
		{"off to off", false, "off", "off", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tr, _, _ := newTestTracker()
			if tt.seedOpen {
				if err := tr.StartInterval(ctx, "d1", t0.Add(-time.Hour)); err != nil {
					t.Fatalf("StartInterval() error = %v", err)
				}
			}

			got, err := tr.HandleStatusChange(ctx, "d1", tt.previous, tt.current, tt.isNew)
			if err != nil {
				t.Fatalf("HandleStatusChange() error = %v", err)
			}
			if got.Opened != tt.wantOpened || got.Closed != tt.wantClosed {
				t.Errorf("HandleStatusChange() = %+v, want opened=%v closed=%v", got, tt.wantOpened, tt.wantClosed)
			}
		})
	}
}

func TestSeenSet(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker()

	if seen, _ := tr.IsSeen(ctx, "ac1"); seen {
		t.Error("IsSeen() = true before MarkSeen")
	}
	if err := tr.MarkSeen(ctx, "ac1"); err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}
	if seen, _ := tr.IsSeen(ctx, "ac1"); !seen {
		t.Error("IsSeen() = false after MarkSeen")
	}
	if err := tr.RemoveSeen(ctx, "ac1"); err != nil {
		t.Fatalf("RemoveSeen() error = %v", err)
	}
	if seen, _ := tr.IsSeen(ctx, "ac1"); seen {
		t.Error("IsSeen() = true after RemoveSeen")
	}
}

func TestDeleteDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("open interval is closed and credited", func(t *testing.T) {
		tr, store, now := newTestTracker()
		tr.MarkSeen(ctx, "light01") //nolint:errcheck // Memory store
		if _, err := tr.HandleStatusChange(ctx, "light01", "", "on", true); err != nil {
			t.Fatalf("HandleStatusChange() error = %v", err)
		}
		*now = t0.Add(10 * time.Second)

		got, err := tr.DeleteDevice(ctx, "light01")
		if err != nil {
			t.Fatalf("DeleteDevice() error = %v", err)
		}
		if got != 10 {
			t.Errorf("DeleteDevice() = %v, want 10", got)
		}
		if seen, _ := tr.IsSeen(ctx, "light01"); seen {
			t.Error("device still in seen set")
		}
		if _, ok, _ := store.HGet(ctx, IntervalsKey, "light01"); ok {
			t.Error("intervals still stored")
		}
		if len(store.List(EventLogKey("light01"))) != 0 {
			t.Error("event log still stored")
		}
	})

	t.Run("no intervals is not an error", func(t *testing.T) {
		tr, _, _ := newTestTracker()
		got, err := tr.DeleteDevice(ctx, "never-on")
		if err != nil || got != 0 {
			t.Errorf("DeleteDevice() = %v, %v, want 0, nil", got, err)
		}
	})
}

func TestIntervalJSON(t *testing.T) {
	var i Interval
	if err := i.UnmarshalJSON([]byte(`["2026-03-01T12:00:00Z", null]`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if !i.Start.Equal(t0) || !i.Open() {
		t.Errorf("UnmarshalJSON() = %+v, want open interval at T0", i)
	}

	for _, bad := range []string{`[]`, `[null, null]`, `["yesterday", null]`, `{}`} {
		if err := i.UnmarshalJSON([]byte(bad)); err == nil {
			t.Errorf("UnmarshalJSON(%s) expected error", bad)
		}
	}
}
