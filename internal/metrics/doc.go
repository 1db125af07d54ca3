// Package metrics exposes device state and API traffic as Prometheus series.
//
// Per-device series are created lazily and cached under a deterministic key
// (see Key), one registered collector per label set, so that a deleted
// device can have all of its series unregistered. DeviceMetrics feeds status
// changes through the usage tracker and turns closed intervals into
// device_usage_seconds_total.
package metrics
