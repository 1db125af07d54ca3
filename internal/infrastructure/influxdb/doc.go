// Package influxdb writes device usage history to InfluxDB v2.
//
// Two measurements are written, both tagged with device_id and device_type:
//
//	device_usage   seconds=<float>              one point per closed active interval
//	device_status  active=<0|1>,status=<string>  one point per status change
//
// Writes are batched and non-blocking. Every write method is a no-op when
// the client is closed, so callers never check state first.
//
// Usage:
//
//	w, err := influxdb.Open(cfg.InfluxDB, logger)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	defer w.Close()
//	w.WriteUsage("light01", "light", 90.25)
package influxdb
