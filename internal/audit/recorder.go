package audit

import (
	"context"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// Logger is the logging interface used by the recorder.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Recorder writes an Entry for every registry change. It implements
// device.Observer.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for write failures.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// DeviceChanged records c. Write failures are logged; the mutation has
// already been committed.
func (r *Recorder) DeviceChanged(ctx context.Context, c device.Change) {
	e := entryFor(c)
	e.Actor = ActorFrom(ctx)
	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Error("writing audit entry", "device_id", e.DeviceID, "action", e.Action, "error", err)
	}
}

func entryFor(c device.Change) *Entry {
	e := &Entry{
		Action:   string(c.Kind),
		DeviceID: c.DeviceID(),
		Origin:   c.Origin.String(),
	}

	d := c.Device
	if d == nil {
		d = c.Previous
	}
	if d != nil {
		e.DeviceType = string(d.Type)
	}

	switch c.Kind {
	case device.ChangeCreated:
		e.Details = map[string]any{"status": c.Device.Status}
	case device.ChangeUpdated:
		e.Details = map[string]any{"status": c.Device.Status}
		if c.Previous != nil && c.Previous.Status != c.Device.Status {
			e.Details["previous_status"] = c.Previous.Status
		}
		if c.Update != nil {
			e.Details["fields"] = updatedFields(c.Update)
		}
	case device.ChangeDeleted:
		if c.Previous != nil {
			e.Details = map[string]any{"status": c.Previous.Status}
		}
	}
	return e
}

// updatedFields names the fields an update set, in payload order.
func updatedFields(u *device.Update) []string {
	var fields []string
	if u.Name != nil {
		fields = append(fields, "name")
	}
	if u.Room != nil {
		fields = append(fields, "room")
	}
	if u.Status != nil {
		fields = append(fields, "status")
	}
	if u.Parameters != nil {
		fields = append(fields, "parameters")
	}
	return fields
}
