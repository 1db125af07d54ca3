package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementUsage  = "device_usage"
	MeasurementStatus = "device_status"
)

// WriteUsage records a closed active interval of seconds for a device.
//
//	w.WriteUsage("light01", "light", 90.25)
func (w *Writer) WriteUsage(deviceID, deviceType string, seconds float64) {
	w.writePoint(usagePoint(deviceID, deviceType, seconds, time.Now()))
}

// WriteStatus records a status change: active is 1 for on/open, 0 otherwise.
func (w *Writer) WriteStatus(deviceID, deviceType, status string, active bool) {
	w.writePoint(statusPoint(deviceID, deviceType, status, active, time.Now()))
}

func (w *Writer) writePoint(p *write.Point) {
	if w.writeAPI == nil || w.closed.Load() {
		return
	}
	w.writeAPI.WritePoint(p)
}

func deviceTags(deviceID, deviceType string) map[string]string {
	return map[string]string{
		"device_id":   deviceID,
		"device_type": deviceType,
	}
}

func usagePoint(deviceID, deviceType string, seconds float64, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementUsage, deviceTags(deviceID, deviceType),
		map[string]interface{}{"seconds": seconds}, ts)
}

func statusPoint(deviceID, deviceType, status string, active bool, ts time.Time) *write.Point {
	value := 0
	if active {
		value = 1
	}
	return write.NewPoint(MeasurementStatus, deviceTags(deviceID, deviceType),
		map[string]interface{}{"active": value, "status": status}, ts)
}
