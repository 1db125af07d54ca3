package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
)

// topicSegments is the level count of <prefix>/<deviceId>/<method> for the
// two-level prefix replicas publish under.
const topicSegments = 4

// State is the bus connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Transport is the broker client the bus drives. *mqtt.Client implements it.
type Transport interface {
	Start(ctx context.Context) error
	Close() error
	Subscribe(filter string, qos byte, handler mqtt.MessageHandler) error
	HasSubscription(filter string) bool
	PublishAsync(topic string, payload []byte, qos byte, props mqtt.UserProperties, onFailure func(error)) error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
}

// Applier applies peer mutations without re-publishing them.
// *device.Registry implements it.
type Applier interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ApplyCreate(ctx context.Context, d *device.Device) (*device.Device, error)
	ApplyUpdate(ctx context.Context, id string, u *device.Update) (*device.Device, error)
	ApplyDelete(ctx context.Context, id string) error
}

// Logger is the logging interface used by the bus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bus.
type Options struct {
	// SenderID is this replica's unique client id.
	SenderID string
	// TopicPrefix is the <prefix> of device topics.
	TopicPrefix string
	// SharedGroup is the broker shared-subscription group.
	SharedGroup string
	// QoS for publish and subscribe.
	QoS byte
}

// Bus replicates device mutations over a message broker.
//
// Outbound, it observes the registry and publishes local mutations,
// queueing them in an Outbox while the broker is unreachable. Inbound, it
// applies mutations published by external producers through the Applier,
// one message at a time.
type Bus struct {
	transport Transport
	applier   Applier
	opts      Options
	logger    Logger

	state  atomic.Int32
	outbox Outbox

	// inMu serializes inbound dispatch.
	inMu sync.Mutex

	ctx context.Context
}

// New creates a bus. Call Start to connect.
func New(transport Transport, applier Applier, opts Options) *Bus {
	return &Bus{
		transport: transport,
		applier:   applier,
		opts:      opts,
		logger:    noopLogger{},
		ctx:       context.Background(),
	}
}

// SetLogger sets the logger. Call before Start.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Start registers connection callbacks and begins connecting in the
// background. ctx is used for inbound dispatch. An unreachable broker is not
// an error; only a transport that cannot start at all is.
func (b *Bus) Start(ctx context.Context) error {
	b.ctx = ctx
	b.transport.SetOnConnect(b.onConnect)
	b.transport.SetOnDisconnect(b.onDisconnect)
	b.transport.SetOnReconnecting(func() { b.setState(Connecting) })

	b.setState(Connecting)
	if err := b.transport.Start(ctx); err != nil {
		b.setState(Disconnected)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Close disconnects the transport. Queued messages are discarded.
func (b *Bus) Close() error {
	err := b.transport.Close()
	b.setState(Disconnected)
	if n := b.outbox.Len(); n > 0 {
		b.logger.Warn("closing replication bus with undelivered messages", "count", n)
	}
	return err
}

// State returns the current connection state.
func (b *Bus) State() State {
	return State(b.state.Load())
}

// OutboxLen returns the number of messages awaiting delivery.
func (b *Bus) OutboxLen() int {
	return b.outbox.Len()
}

// HealthCheck fails unless the bus is connected.
func (b *Bus) HealthCheck(_ context.Context) error {
	if s := b.State(); s != Connected {
		return fmt.Errorf("%w: bus %s", ErrTransport, s)
	}
	return nil
}

func (b *Bus) setState(s State) {
	if old := State(b.state.Swap(int32(s))); old != s {
		b.logger.Info("replication bus state changed", "from", old, "to", s)
	}
}

// subscriptionTopic is the shared wildcard covering every device.
func (b *Bus) subscriptionTopic() string {
	return mqtt.SharedSubscription(b.opts.SharedGroup, mqtt.DeviceWildcard(b.opts.TopicPrefix))
}

func (b *Bus) onConnect() {
	b.setState(Connected)

	topic := b.subscriptionTopic()
	if !b.transport.HasSubscription(topic) {
		if err := b.transport.Subscribe(topic, b.opts.QoS, b.handleMessage); err != nil {
			b.logger.Error("subscribing to device topics", "topic", topic, "error", err)
		}
	}

	b.Flush()
}

func (b *Bus) onDisconnect(err error) {
	b.setState(Disconnected)
	b.logger.Warn("replication bus disconnected", "error", err)
}

// Publish sends payload as a JSON object to <prefix>/<deviceID>/<method>,
// tagged with the sender_id and sender_group user properties. The "_id"
// storage key is removed from payload.
//
// It never blocks on the broker and never fails: messages that cannot be
// handed to the transport, or whose delivery later fails, are queued in the
// outbox.
func (b *Bus) Publish(payload any, prefix, deviceID, method string) {
	data, err := encodePayload(payload)
	if err != nil {
		b.logger.Error("dropping unencodable publication", "device_id", deviceID, "method", method, "error", err)
		return
	}
	b.send(Message{
		Topic:   mqtt.DeviceTopic(prefix, deviceID, method),
		Payload: data,
		Props:   senderProperties(b.opts.SenderID),
	})
}

// send hands m to the transport or queues it.
func (b *Bus) send(m Message) {
	err := b.transport.PublishAsync(m.Topic, m.Payload, b.opts.QoS, m.Props, func(err error) {
		b.logger.Warn("publish failed, queueing", "topic", m.Topic, "error", err)
		b.outbox.Push(m)
	})
	if err != nil {
		b.logger.Debug("publish deferred", "topic", m.Topic, "error", fmt.Errorf("%w: %w", ErrTransport, err))
		b.outbox.Push(m)
	}
}

// Flush replays queued messages in FIFO order. Messages that fail again
// are re-queued at the tail.
func (b *Bus) Flush() {
	pending := b.outbox.Drain()
	if len(pending) == 0 {
		return
	}
	b.logger.Info("flushing outbox", "count", len(pending))
	for _, m := range pending {
		b.send(m)
	}
}

// DeviceChanged publishes local registry mutations. Replicated changes are
// skipped so that applying a peer's message never echoes it back.
func (b *Bus) DeviceChanged(_ context.Context, c device.Change) {
	if c.Origin != device.OriginLocal {
		return
	}

	switch c.Kind {
	case device.ChangeCreated:
		b.Publish(c.Device, b.opts.TopicPrefix, c.DeviceID(), mqtt.MethodPost)
	case device.ChangeUpdated:
		b.Publish(c.Update, b.opts.TopicPrefix, c.DeviceID(), mqtt.MethodUpdate)
	case device.ChangeDeleted:
		b.Publish(nil, b.opts.TopicPrefix, c.DeviceID(), mqtt.MethodDelete)
	}
}

// handleMessage is the transport callback. Failures are logged, never
// returned, so a bad peer message cannot disturb the subscription.
func (b *Bus) handleMessage(topic string, payload []byte, props mqtt.UserProperties) error {
	b.inMu.Lock()
	defer b.inMu.Unlock()

	err := b.dispatch(b.ctx, topic, payload, props)
	switch {
	case err == nil:
	case errors.Is(err, errIgnored):
		b.logger.Debug("ignoring own-group message", "topic", topic)
	case errors.Is(err, ErrMalformedMessage):
		b.logger.Warn("dropping malformed message", "topic", topic, "error", err)
	default:
		b.logger.Warn("failed to apply replicated change", "topic", topic, "error", err)
	}
	return nil
}

// errIgnored marks messages skipped by loop avoidance.
var errIgnored = errors.New("replication: message from backend sender")

// dispatch checks the sender tags of one inbound message and applies its
// payload. An empty payload counts as {}.
func (b *Bus) dispatch(ctx context.Context, topic string, payload []byte, props mqtt.UserProperties) error {
	senderID, senderGroup, err := senderTags(props)
	if err != nil {
		return err
	}
	if senderID == b.opts.SenderID || senderGroup == SenderGroup {
		return errIgnored
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	segments := mqtt.SplitTopic(topic)
	if len(segments) != topicSegments {
		return fmt.Errorf("%w: topic %q has %d segments, want %d", ErrMalformedMessage, topic, len(segments), topicSegments)
	}
	deviceID, method := segments[2], segments[3]

	switch method {
	case mqtt.MethodPost:
		return b.applyCreate(ctx, deviceID, payload)
	case mqtt.MethodUpdate:
		return b.applyUpdate(ctx, deviceID, payload)
	case mqtt.MethodDelete:
		return b.applier.ApplyDelete(ctx, deviceID)
	default:
		return fmt.Errorf("%w: unknown method %q", ErrMalformedMessage, method)
	}
}

func (b *Bus) applyCreate(ctx context.Context, deviceID string, payload []byte) error {
	d, err := device.DecodeDevice(payload)
	if err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = deviceID
	}
	if d.ID != deviceID {
		return fmt.Errorf("%w: payload id %q does not match topic id %q", ErrMalformedMessage, d.ID, deviceID)
	}

	_, err = b.applier.ApplyCreate(ctx, d)
	return err
}

func (b *Bus) applyUpdate(ctx context.Context, deviceID string, payload []byte) error {
	current, err := b.applier.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	u, err := device.DecodeUpdate(payload, current.Type)
	if err != nil {
		return err
	}

	_, err = b.applier.ApplyUpdate(ctx, deviceID, u)
	return err
}
