package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/usage"
)

// History receives usage points for long-term storage.
// *influxdb.Writer implements it.
type History interface {
	WriteUsage(deviceID, deviceType string, seconds float64)
	WriteStatus(deviceID, deviceType, status string, active bool)
}

// Logger is the logging interface used by DeviceMetrics.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceMetrics turns device state into Prometheus series and usage
// intervals. It implements device.Observer.
type DeviceMetrics struct {
	collector *Collector
	tracker   *usage.Tracker
	history   History
	logger    Logger
}

// NewDeviceMetrics creates device metrics over collector and tracker.
func NewDeviceMetrics(collector *Collector, tracker *usage.Tracker) *DeviceMetrics {
	return &DeviceMetrics{
		collector: collector,
		tracker:   tracker,
		logger:    noopLogger{},
	}
}

// SetHistory enables writing usage to long-term storage.
func (m *DeviceMetrics) SetHistory(h History) {
	m.history = h
}

// SetLogger sets the logger.
func (m *DeviceMetrics) SetLogger(logger Logger) {
	m.logger = logger
}

// ObserveDevice initializes the series of a device the first time any
// replica sees it: counters start at zero, gauges reflect d and an interval
// opens if d is active. Later calls are no-ops.
func (m *DeviceMetrics) ObserveDevice(ctx context.Context, d *device.Device) error {
	seen, err := m.tracker.IsSeen(ctx, d.ID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	m.logger.Info("device observed for the first time", "device_id", d.ID)
	labels := deviceLabels(d)
	m.collector.Counter(OnEventsTotal, labels).Add(0)
	m.collector.Counter(UsageSecondsTotal, labels).Add(0)

	if err := m.statusChanged(ctx, d, "", true); err != nil {
		return err
	}
	m.setGauges(d, nil)
	return m.tracker.MarkSeen(ctx, d.ID)
}

// UpdateDevice applies the transition from before to after. A device not
// yet seen is first observed in its before state.
func (m *DeviceMetrics) UpdateDevice(ctx context.Context, before, after *device.Device) error {
	if err := m.ObserveDevice(ctx, before); err != nil {
		return err
	}

	if before.Status != after.Status {
		if err := m.statusChanged(ctx, after, before.Status, false); err != nil {
			return err
		}
	}
	m.setGauges(after, before)
	return nil
}

// DeleteDevice closes any open interval, credits it to history and removes
// every series of d.
func (m *DeviceMetrics) DeleteDevice(ctx context.Context, d *device.Device) error {
	seconds, err := m.tracker.DeleteDevice(ctx, d.ID)
	if err != nil {
		return err
	}
	if seconds > 0 && m.history != nil {
		m.history.WriteUsage(d.ID, string(d.Type), seconds)
	}
	m.collector.RemoveDevice(d.ID)
	return nil
}

// DeviceChanged routes local registry changes. Replicated changes are
// skipped: the replica that accepted the request already tracked them in the
// shared usage store.
//
// Changes from external publishers arrive only as replicated changes, so no
// replica tracks them. A device switched on or off over the bus keeps its
// previous interval open (or none at all) until a local request changes
// its status again, and its usage and status gauges drift for that period.
func (m *DeviceMetrics) DeviceChanged(ctx context.Context, c device.Change) {
	if c.Origin != device.OriginLocal {
		return
	}

	var err error
	switch c.Kind {
	case device.ChangeCreated:
		err = m.ObserveDevice(ctx, c.Device)
	case device.ChangeUpdated:
		err = m.UpdateDevice(ctx, c.Previous, c.Device)
	case device.ChangeDeleted:
		err = m.DeleteDevice(ctx, c.Previous)
	}
	if err != nil {
		m.logger.Error("updating device metrics", "device_id", c.DeviceID(), "kind", c.Kind, "error", err)
	}
}

func (m *DeviceMetrics) statusChanged(ctx context.Context, d *device.Device, previous string, isNew bool) error {
	tr, err := m.tracker.HandleStatusChange(ctx, d.ID, previous, d.Status, isNew)
	if err != nil {
		return fmt.Errorf("tracking status of %s: %w", d.ID, err)
	}

	labels := deviceLabels(d)
	if tr.Opened && !isNew {
		m.collector.Counter(OnEventsTotal, labels).Inc()
	}
	if tr.Closed {
		m.collector.Counter(UsageSecondsTotal, labels).Add(tr.Duration)
		if m.history != nil {
			m.history.WriteUsage(d.ID, string(d.Type), tr.Duration)
		}
	}

	active := usage.IsActive(d.Status)
	m.collector.Gauge(DeviceStatus, labels).Set(boolValue(active))
	if m.history != nil {
		m.history.WriteStatus(d.ID, string(d.Type), d.Status, active)
	}
	return nil
}

// setGauges refreshes metadata and parameter gauges. before, when set, is
// used to retire label sets that no longer apply.
func (m *DeviceMetrics) setGauges(d, before *device.Device) {
	meta := metadataLabels(d)
	if before != nil && (before.Name != d.Name || before.Room != d.Room) {
		m.collector.Remove(DeviceMetadata, metadataLabels(before))
	}
	m.collector.Gauge(DeviceMetadata, meta).Set(1)

	id := idLabels(d.ID)
	switch p := d.Parameters.(type) {
	case *device.LightParameters:
		m.setInt(LightBrightness, id, p.Brightness)
		if p.Color != nil {
			if rgb, ok := colorValue(*p.Color); ok {
				m.collector.Gauge(LightColor, id).Set(rgb)
			}
		}
		m.setBool(LightIsDimmable, id, p.IsDimmable)
		m.setBool(LightDynamicColor, id, p.DynamicColor)

	case *device.AirConditionerParameters:
		m.setInt(ACTemperature, id, p.Temperature)
		m.setEnum(ACModeStatus, d.ID, p.Mode, device.ACModes())
		m.setEnum(ACSwingStatus, d.ID, p.Swing, device.ACSwings())
		m.setEnum(ACFanStatus, d.ID, p.FanSpeed, device.ACFanSpeeds())

	case *device.WaterHeaterParameters:
		m.setInt(WaterHeaterTemperature, id, p.Temperature)
		m.setInt(WaterHeaterTargetTemperature, id, p.TargetTemperature)
		m.setFlag(WaterHeaterIsHeating, d.ID, p.IsHeating)
		m.setFlag(WaterHeaterTimerEnabled, d.ID, p.TimerEnabled)
		m.setSchedule(d, before)

	case *device.DoorLockParameters:
		m.collector.Gauge(LockStatus, id).Set(boolValue(d.Status == device.StatusLocked))
		m.setFlag(LockAutoLock, d.ID, p.AutoLockEnabled)
		m.setInt(LockBatteryLevel, id, p.BatteryLevel)

	case *device.CurtainParameters:
		m.collector.Gauge(CurtainStatus, id).Set(boolValue(d.Status == device.StatusOpen))
		m.setInt(CurtainPosition, id, p.Position)
	}
}

func (m *DeviceMetrics) setInt(name string, labels map[string]string, v *int) {
	if v != nil {
		m.collector.Gauge(name, labels).Set(float64(*v))
	}
}

func (m *DeviceMetrics) setBool(name string, labels map[string]string, v *bool) {
	if v != nil {
		m.collector.Gauge(name, labels).Set(boolValue(*v))
	}
}

// setFlag sets state=True and state=False series to 1/0.
func (m *DeviceMetrics) setFlag(name, deviceID string, v *bool) {
	if v == nil {
		return
	}
	m.collector.Gauge(name, map[string]string{labelDeviceID: deviceID, labelState: "True"}).Set(boolValue(*v))
	m.collector.Gauge(name, map[string]string{labelDeviceID: deviceID, labelState: "False"}).Set(boolValue(!*v))
}

// setEnum sets the series of the current value to 1 and the others to 0.
func (m *DeviceMetrics) setEnum(name, deviceID string, v *string, values []string) {
	if v == nil {
		return
	}
	for _, value := range values {
		labels := map[string]string{labelDeviceID: deviceID, labelMode: value}
		m.collector.Gauge(name, labels).Set(boolValue(strings.EqualFold(value, *v)))
	}
}

func (m *DeviceMetrics) setSchedule(d, before *device.Device) {
	current := scheduleLabels(d)
	if current == nil {
		return
	}
	if before != nil {
		if previous := scheduleLabels(before); previous != nil && Key(WaterHeaterScheduleInfo, previous) != Key(WaterHeaterScheduleInfo, current) {
			m.collector.Gauge(WaterHeaterScheduleInfo, previous).Set(0)
		}
	}
	m.collector.Gauge(WaterHeaterScheduleInfo, current).Set(1)
}

func scheduleLabels(d *device.Device) map[string]string {
	p, ok := d.Parameters.(*device.WaterHeaterParameters)
	if !ok || p.ScheduledOn == nil || p.ScheduledOff == nil {
		return nil
	}
	return map[string]string{
		labelDeviceID:   d.ID,
		"scheduled_on":  *p.ScheduledOn,
		"scheduled_off": *p.ScheduledOff,
	}
}

func idLabels(deviceID string) map[string]string {
	return map[string]string{labelDeviceID: deviceID}
}

func deviceLabels(d *device.Device) map[string]string {
	return map[string]string{labelDeviceID: d.ID, labelDeviceType: string(d.Type)}
}

func metadataLabels(d *device.Device) map[string]string {
	return map[string]string{
		labelDeviceID:   d.ID,
		labelDeviceType: string(d.Type),
		labelName:       d.Name,
		labelRoom:       d.Room,
	}
}

// colorValue converts #RGB or #RRGGBB to its decimal RGB value.
func colorValue(hex string) (float64, bool) {
	if !device.IsValidHexColor(hex) {
		return 0, false
	}
	digits := hex[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, false
	}
	return float64(v), true
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
