// Package usage derives device usage time from status changes.
//
// Each device has an ordered list of intervals; at most one, the last, is
// open. A status change into an active status (on, locked, closed) opens an
// interval and a change out of it closes the interval and yields its length
// in seconds.
//
// Storage layout in the KVStore:
//
//	seen_devices                    set of device ids observed at least once
//	device_on_intervals             hash: device id -> [[start, end|null], ...]
//	device_on_intervals:<deviceId>  list: one [start, null] entry per opened interval
//
// Timestamps are UTC with microseconds, e.g. 2026-03-01T12:00:00.000000+00:00.
//
// Thread Safety:
//
// Tracker methods may be called concurrently, but interval updates are not
// atomic per device. Redis (infrastructure/redis) is the store in
// multi-replica deployments; MemoryStore serves a single process.
package usage
