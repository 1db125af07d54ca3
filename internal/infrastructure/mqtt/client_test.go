package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at a local broker.
// Broker tests skip when 127.0.0.1:1883 is not reachable.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS:         2,
		TopicPrefix: "smarthome-test/devices",
		SharedGroup: "backend",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// startOrSkip starts a client and waits for the broker, or skips the test.
func startOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	client := New(testConfig(clientID))
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup

	deadline := time.Now().Add(3 * time.Second)
	for !client.IsConnected() {
		if time.Now().After(deadline) {
			t.Skip("no MQTT broker at 127.0.0.1:1883")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return client
}

// =============================================================================
// Offline behaviour
// =============================================================================

func TestNewIsDisconnected(t *testing.T) {
	client := New(testConfig("smarthome-offline"))
	defer client.Close() //nolint:errcheck // Test cleanup

	if client.IsConnected() {
		t.Error("IsConnected() = true before Start, want false")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if got := client.ClientID(); got != "smarthome-offline" {
		t.Errorf("ClientID() = %q, want smarthome-offline", got)
	}
	if got := client.QoS(); got != 2 {
		t.Errorf("QoS() = %d, want 2", got)
	}
}

func TestPublishValidation(t *testing.T) {
	client := New(testConfig("smarthome-validation"))
	defer client.Close() //nolint:errcheck // Test cleanup

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("{}"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("{}"), 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "a/b", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.PublishAsync(tt.topic, tt.payload, tt.qos, nil, nil); !errors.Is(err, tt.want) {
				t.Errorf("PublishAsync() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := New(testConfig("smarthome-sub-validation"))
	defer client.Close() //nolint:errcheck // Test cleanup
	noop := func(string, []byte, UserProperties) error { return nil }

	if err := client.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("a/#", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("a/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("a/#", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if client.HasSubscription("a/#") {
		t.Error("HasSubscription() = true after failed Subscribe")
	}
}

func TestStartInvalidBroker(t *testing.T) {
	cfg := testConfig("smarthome-invalid")
	cfg.Broker.Host = "bad host"

	client := New(cfg)
	if err := client.Start(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Start() error = %v, want ErrConnectionFailed", err)
	}
}

func TestStartBrokerDownKeepsRetrying(t *testing.T) {
	cfg := testConfig("smarthome-refused")
	cfg.Broker.Port = 19999

	client := New(cfg)
	attempts := make(chan struct{}, 1)
	client.SetOnReconnecting(func() {
		select {
		case attempts <- struct{}{}:
		default:
		}
	})
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil while broker is down", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	select {
	case <-attempts:
	case <-time.After(5 * time.Second):
		t.Fatal("no reconnect attempt reported")
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true with broker down")
	}
}

func TestCloseNil(t *testing.T) {
	var c Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

func TestBuildClientConfig(t *testing.T) {
	cfg := testConfig("smarthome-opts")
	cfg.Auth.Username = "svc"
	cfg.Auth.Password = "pw"
	cfg.Broker.TLS = true

	got, err := New(cfg).buildClientConfig()
	if err != nil {
		t.Fatalf("buildClientConfig() error = %v", err)
	}

	if u := got.ServerUrls[0].String(); u != "mqtts://127.0.0.1:1883" {
		t.Errorf("broker = %q, want mqtts://127.0.0.1:1883", u)
	}
	if got.ClientConfig.ClientID != "smarthome-opts" || got.ConnectUsername != "svc" || string(got.ConnectPassword) != "pw" {
		t.Errorf("ClientID/Username/Password = %q/%q/%q", got.ClientConfig.ClientID, got.ConnectUsername, got.ConnectPassword)
	}
	if !got.CleanStartOnInitialConnection || got.KeepAlive != defaultKeepAlive {
		t.Errorf("CleanStart/KeepAlive = %v/%d", got.CleanStartOnInitialConnection, got.KeepAlive)
	}
	if got.ReconnectBackoff == nil {
		t.Error("ReconnectBackoff = nil")
	}
	if len(got.ClientConfig.OnPublishReceived) != 1 {
		t.Errorf("len(OnPublishReceived) = %d, want 1", len(got.ClientConfig.OnPublishReceived))
	}
	if got.TlsCfg == nil || got.TlsCfg.MinVersion != tlsMinVersion {
		t.Error("TlsCfg missing or below TLS 1.2 with TLS enabled")
	}
}

// =============================================================================
// Inbound routing
// =============================================================================

func received(topic, payload string, props paho.UserProperties) paho.PublishReceived {
	return paho.PublishReceived{Packet: &paho.Publish{
		Topic:      topic,
		Payload:    []byte(payload),
		Properties: &paho.PublishProperties{User: props},
	}}
}

func TestHandlePublishRoutesWithProperties(t *testing.T) {
	client := New(testConfig("smarthome-routing"))

	var gotTopic string
	var gotProps UserProperties
	client.subscriptions["$share/backend/home/devices/#"] = subscription{
		filter: "$share/backend/home/devices/#",
		handler: func(topic string, _ []byte, props UserProperties) error {
			gotTopic, gotProps = topic, props
			return nil
		},
	}
	other := false
	client.subscriptions["office/#"] = subscription{
		filter:  "office/#",
		handler: func(string, []byte, UserProperties) error { other = true; return nil },
	}

	handled, err := client.handlePublish(received("home/devices/light01/post", `{}`, paho.UserProperties{
		{Key: "sender_id", Value: "gw-1"},
		{Key: "sender_group", Value: "sensors"},
	}))
	if !handled || err != nil {
		t.Fatalf("handlePublish() = %v, %v, want true, nil", handled, err)
	}
	if gotTopic != "home/devices/light01/post" {
		t.Errorf("topic = %q, want home/devices/light01/post", gotTopic)
	}
	if gotProps.Get("sender_id") != "gw-1" || gotProps.Get("sender_group") != "sensors" {
		t.Errorf("props = %v, want sender_id=gw-1 sender_group=sensors", gotProps)
	}
	if other {
		t.Error("non-matching subscription was invoked")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	client := New(testConfig("smarthome-panic"))
	calls := 0
	client.subscriptions["a/#"] = subscription{
		filter: "a/#",
		handler: func(string, []byte, UserProperties) error {
			calls++
			panic("boom")
		},
	}

	for i := 0; i < 2; i++ {
		if handled, _ := client.handlePublish(received("a/b", "x", nil)); !handled {
			t.Errorf("handlePublish() handled = false for message %d", i+1)
		}
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

// =============================================================================
// Broker round trips
// =============================================================================

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := startOrSkip(t, "smarthome-roundtrip")
	prefix := fmt.Sprintf("smarthome-test/%d/devices", time.Now().UnixNano())

	type message struct {
		topic   string
		payload string
		props   UserProperties
	}
	var mu sync.Mutex
	var got []message
	arrived := make(chan struct{}, 3)
	err := client.Subscribe(DeviceWildcard(prefix), 2, func(topic string, payload []byte, props UserProperties) error {
		mu.Lock()
		got = append(got, message{topic, string(payload), props})
		mu.Unlock()
		arrived <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(DeviceWildcard(prefix)) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	props := UserProperties{{Key: "sender_id", Value: "smarthome-roundtrip"}, {Key: "sender_group", Value: "backend"}}
	methods := []string{MethodPost, MethodUpdate, MethodDelete}
	for _, m := range methods {
		if err := client.PublishAsync(DeviceTopic(prefix, "light01", m), []byte(`{"status":"on"}`), 2, props, nil); err != nil {
			t.Fatalf("PublishAsync(%s) error = %v", m, err)
		}
	}

	for range methods {
		select {
		case <-arrived:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, m := range methods {
		if want := DeviceTopic(prefix, "light01", m); got[i].topic != want {
			t.Errorf("message %d topic = %q, want %q (arrival order)", i, got[i].topic, want)
		}
		if got[i].payload != `{"status":"on"}` {
			t.Errorf("message %d payload = %s, want raw JSON", i, got[i].payload)
		}
		if got[i].props.Get("sender_group") != "backend" {
			t.Errorf("message %d props = %v, want sender_group=backend", i, got[i].props)
		}
	}
}

func TestPublishAfterClose(t *testing.T) {
	client := startOrSkip(t, "smarthome-close")

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.PublishAsync("smarthome-test/closed", []byte("x"), 1, nil, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishAsync() after Close error = %v, want ErrNotConnected", err)
	}
}
