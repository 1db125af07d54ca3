package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
)

// Client wraps an autopaho MQTT 5 connection with connection tracking,
// subscription restoration, ordered fire-and-forget publishing and
// panic-safe handlers.
//
// A Client is created disconnected by New and brought up by Start, which
// keeps reconnecting in the background until Close.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	cfg config.MQTTConfig

	cm     *autopaho.ConnectionManager
	cancel context.CancelFunc
	queue  chan outbound

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect      func()
	onDisconnect   func(err error)
	onReconnecting func()
	callbackMu     sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	filter  string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Messages are delivered in arrival order on paho's receive goroutine, so a
// slow handler delays every subsequent message. A QoS 1/2 message is
// acknowledged after its handler returns.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload
//   - props: MQTT 5 user properties sent with the message
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte, props UserProperties) error

// New builds a disconnected client from cfg. Register callbacks with
// SetOnConnect and friends before calling Start.
func New(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:           cfg,
		queue:         make(chan outbound, publishQueueSize),
		subscriptions: make(map[string]subscription),
	}
}

// Start begins connecting without waiting. Failed attempts are retried with
// bounded exponential backoff until the broker accepts the connection or
// Close is called. Only a malformed broker configuration fails Start.
func (c *Client) Start(ctx context.Context) error {
	cliCfg, err := c.buildClientConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.cm = cm
	c.cancel = cancel
	c.connMu.Unlock()

	go c.publishLoop(ctx, cm)
	return nil
}

// handleConnect runs on every successful (re)connect, after the CONNACK.
func (c *Client) handleConnect(cm *autopaho.ConnectionManager) {
	c.connMu.Lock()
	c.cm = cm
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions(cm)

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect runs when the connection drops or the server sends
// DISCONNECT. It fires once per lost connection.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()
	if !wasConnected {
		return
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// handleConnectError runs after each failed connection attempt.
func (c *Client) handleConnectError(err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection attempt failed", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onReconnecting
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// restoreSubscriptions re-subscribes to all tracked filters after reconnect.
func (c *Client) restoreSubscriptions(cm *autopaho.ConnectionManager) {
	c.subMu.RLock()
	subs := make([]paho.SubscribeOptions, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, paho.SubscribeOptions{Topic: sub.filter, QoS: sub.qos})
	}
	c.subMu.RUnlock()
	if len(subs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultOperationTimeout)
	defer cancel()
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Error("MQTT resubscribe failed", "count", len(subs), "error", err)
		}
	}
}

// Close disconnects from the broker and stops reconnecting. Queued
// publications are reported to their failure callbacks with ErrClosed.
func (c *Client) Close() error {
	c.connMu.Lock()
	cm, cancel, connected := c.cm, c.cancel, c.connected
	c.cm, c.cancel, c.connected = nil, nil, false
	c.connMu.Unlock()

	if cm == nil {
		return nil
	}

	var err error
	if connected {
		ctx, stop := context.WithTimeout(context.Background(), defaultDisconnectTimeout)
		err = cm.Disconnect(ctx)
		stop()
	}
	cancel()
	<-cm.Done()

	if err != nil {
		return fmt.Errorf("mqtt disconnect: %w", err)
	}
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns whether the broker connection is currently up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

func (c *Client) connection() *autopaho.ConnectionManager {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if !c.connected {
		return nil
	}
	return c.cm
}

// ClientID returns the MQTT client identifier, which doubles as this
// replica's sender id.
func (c *Client) ClientID() string {
	return c.cfg.Broker.ClientID
}

// SetOnConnect sets a callback invoked on the initial connect and on every
// reconnect, after subscriptions have been restored.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnReconnecting sets a callback invoked after each failed connection
// attempt, before the next one.
func (c *Client) SetOnReconnecting(callback func()) {
	c.callbackMu.Lock()
	c.onReconnecting = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection failures, handler errors and
// panics. If not set, they are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// handlePublish routes an inbound PUBLISH to every matching subscription.
// It always reports the message as handled so paho acknowledges it.
func (c *Client) handlePublish(pr paho.PublishReceived) (bool, error) {
	p := pr.Packet
	var props UserProperties
	if p.Properties != nil {
		props = fromPaho(p.Properties.User)
	}

	c.subMu.RLock()
	var handlers []MessageHandler
	for _, sub := range c.subscriptions {
		if MatchFilter(sub.filter, p.Topic) {
			handlers = append(handlers, sub.handler)
		}
	}
	c.subMu.RUnlock()

	for _, h := range handlers {
		c.invoke(h, p.Topic, p.Payload, props)
	}
	return true, nil
}

// invoke calls handler with panic recovery and optional logging.
func (c *Client) invoke(handler MessageHandler, topic string, payload []byte, props UserProperties) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", topic,
					"panic", r,
				)
			}
		}
	}()

	if err := handler(topic, payload, props); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", topic,
				"error", err,
			)
		}
	}
}
