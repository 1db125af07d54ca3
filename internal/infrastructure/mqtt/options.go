package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish and subscribe round trips.
	defaultOperationTimeout = 5 * time.Second

	defaultDisconnectTimeout = time.Second

	defaultKeepAlive = 60 // seconds

	// publishQueueSize bounds publications handed to PublishAsync but not
	// yet sent. A full queue fails PublishAsync synchronously.
	publishQueueSize = 1024

	backoffFactor = 2

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// brokerURL returns mqtt://host:port, or mqtts:// when TLS is enabled.
func (c *Client) brokerURL() (*url.URL, error) {
	scheme := "mqtt"
	if c.cfg.Broker.TLS {
		scheme = "mqtts"
	}
	u, err := url.Parse(scheme + "://" + c.cfg.Broker.Host + ":" + strconv.Itoa(c.cfg.Broker.Port))
	if err != nil {
		return nil, fmt.Errorf("%w: broker address: %w", ErrConnectionFailed, err)
	}
	return u, nil
}

// buildClientConfig creates the autopaho configuration from config.
//
// The session starts clean and is not kept after disconnect: the shared
// subscription is re-established by restoreSubscriptions and undelivered
// publications live in the caller's outbox. Reconnects back off
// exponentially between Reconnect.InitialDelay and Reconnect.MaxDelay.
func (c *Client) buildClientConfig() (autopaho.ClientConfig, error) {
	u, err := c.brokerURL()
	if err != nil {
		return autopaho.ClientConfig{}, err
	}

	initial := time.Duration(c.cfg.Reconnect.InitialDelay) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := time.Duration(c.cfg.Reconnect.MaxDelay) * time.Second
	if maxDelay <= initial {
		maxDelay = initial + time.Second
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     defaultKeepAlive,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         0,
		ConnectTimeout:                defaultConnectTimeout,
		ReconnectBackoff:              autopaho.NewExponentialBackoff(initial, maxDelay, initial, backoffFactor),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.handleConnect(cm)
		},
		OnConnectError: c.handleConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.Broker.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.handlePublish,
			},
			OnClientError: c.handleDisconnect,
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.handleDisconnect(fmt.Errorf("%w: server disconnect, reason code %d", ErrNotConnected, d.ReasonCode))
			},
		},
	}

	if c.cfg.Auth.Username != "" {
		cfg.ConnectUsername = c.cfg.Auth.Username
		cfg.ConnectPassword = []byte(c.cfg.Auth.Password)
	}
	if c.cfg.Broker.TLS {
		cfg.TlsCfg = &tls.Config{MinVersion: tlsMinVersion}
	}

	return cfg, nil
}
