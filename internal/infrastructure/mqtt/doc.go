// Package mqtt provides the MQTT 5 broker connection used to replicate
// device mutations between backend replicas.
//
// This package manages:
//   - Connection to the broker with indefinite, bounded-backoff reconnect
//   - Ordered fire-and-forget publishing with MQTT 5 user properties
//   - Subscriptions that are restored after every reconnect
//   - Device topic builders, shared-subscription filters and filter matching
//
// # Architecture
//
// Every replica publishes its mutations to <prefix>/<deviceId>/<method> and
// joins a shared subscription on <prefix>/#, so each externally published
// message is consumed by exactly one replica.
//
//	replica A ─┐                 ┌─> replica A
//	replica B ─┼─> MQTT broker ──┤   (one of, via $share/<group>/)
//	external  ─┘                 └─> replica B
//
// # Delivery
//
// Inbound messages are handed to subscription handlers one at a time in
// arrival order, together with the message's user properties. PublishAsync
// never waits for the broker; its failures are reported through a callback
// so the caller can queue the message.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	client.SetOnConnect(func() { ... })
//	if err := client.Start(ctx); err != nil { ... }
//	defer client.Close()
//
//	err := client.PublishAsync(mqtt.DeviceTopic(prefix, "light01", mqtt.MethodUpdate),
//	    payload, client.QoS(), mqtt.UserProperties{{Key: "sender_id", Value: id}},
//	    func(err error) { requeue(err) })
package mqtt
