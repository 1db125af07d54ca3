package mqtt

import (
	"context"
	"fmt"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// outbound is a publication waiting in the send queue.
type outbound struct {
	publish   *paho.Publish
	onFailure func(error)
}

// PublishAsync queues a message for delivery without waiting for the
// broker. Messages are sent one at a time in the order they were queued,
// each waiting for its QoS handshake before the next.
//
// A synchronous error (invalid input, not connected, queue full) is returned
// directly; a later delivery failure is reported to onFailure from the send
// goroutine.
//
// Parameters:
//   - topic: The topic to publish to (e.g. "home/devices/light01/update")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - props: MQTT 5 user properties attached to the message
//   - onFailure: optional callback for asynchronous delivery errors
//
// Returns:
//   - error: nil if the message was queued
func (c *Client) PublishAsync(topic string, payload []byte, qos byte, props UserProperties, onFailure func(error)) error {
	if err := c.checkPublish(topic, payload, qos); err != nil {
		return err
	}

	p := &paho.Publish{
		Topic:   topic,
		QoS:     qos,
		Payload: payload,
	}
	if len(props) > 0 {
		p.Properties = &paho.PublishProperties{User: props.toPaho()}
	}

	select {
	case c.queue <- outbound{publish: p, onFailure: onFailure}:
		return nil
	default:
		return fmt.Errorf("%w: send queue full (%d messages)", ErrPublishFailed, publishQueueSize)
	}
}

// publishLoop sends queued publications until ctx is cancelled, then fails
// whatever is left with ErrClosed.
func (c *Client) publishLoop(ctx context.Context, cm *autopaho.ConnectionManager) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case m := <-c.queue:
					m.fail(ErrClosed)
				default:
					return
				}
			}
		case m := <-c.queue:
			sendCtx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
			_, err := cm.Publish(sendCtx, m.publish)
			cancel()
			if err != nil {
				m.fail(fmt.Errorf("%w: %w", ErrPublishFailed, err))
			}
		}
	}
}

func (m outbound) fail(err error) {
	if m.onFailure != nil {
		m.onFailure(err)
	}
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS) //nolint:gosec // Validated 0-2 by config
}

func (c *Client) checkPublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
