// Package replication keeps device state converged across backend replicas
// through an MQTT broker.
//
// # Architecture
//
//	API ──> device.Registry ──(OriginLocal change)──> Bus.Publish ──> broker
//	                 ^                                                  │
//	                 └──── Apply* <── Bus.dispatch <── $share/<group>/<prefix>/#
//
// Every message is published on <prefix>/<deviceId>/<post|update|delete>
// as MQTT 5. Its payload is the device JSON object itself and its sender
// travels in two user properties:
//
//	sender_id=backend-pod-1  sender_group=backend  {"id":"light01","status":"on",...}
//
// Messages without both properties are dropped as malformed.
//
// # Loop avoidance
//
// Inbound messages whose sender_id is this replica, or whose sender_group is
// the backend group, are discarded. Replicas share the device store, so a
// change made by one replica is already visible to the others; only external
// producers' messages are applied. Changes applied from the bus reach
// observers as device.OriginReplicated and are not re-published.
//
// # Delivery
//
// Publish never blocks and never fails. Messages the transport refuses
// (broker down) or later reports as undelivered are queued in the Outbox and
// replayed in FIFO order on the next connect; a message that fails again is
// re-queued at the tail. The outbox lives in memory and is lost on exit.
//
// # Thread Safety
//
// Publish and DeviceChanged may be called from any goroutine. Inbound
// messages are applied one at a time in arrival order.
package replication
