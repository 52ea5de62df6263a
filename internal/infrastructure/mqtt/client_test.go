package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/config"
)

// testClient returns a client that has never connected.
// Validation paths and connection-state fast-fails are testable
// without a live broker.
func testClient() *Client {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "test-client",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     120,
		},
	}

	opts := buildClientOptions(cfg)
	return &Client{
		cfg:           cfg,
		options:       opts,
		client:        pahomqtt.NewClient(opts),
		subscriptions: make(map[string]subscription),
	}
}

func TestPublish_Validation(t *testing.T) {
	c := testClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "esp32/iot/control", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "esp32/iot/control", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "esp32/iot/control", []byte("LED1_ON"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := testClient()

	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("esp32/iot/data", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("esp32/iot/data", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("esp32/iot/data", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := testClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_CancelledContext(t *testing.T) {
	c := testClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.example.com",
			Port:     8883,
			TLS:      true,
			ClientID: "iot-core",
		},
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 120},
	}

	opts := buildClientOptions(cfg)
	servers := opts.Servers
	if len(servers) != 1 {
		t.Fatalf("servers = %d, want 1", len(servers))
	}
	if servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", servers[0].Scheme)
	}
	if !strings.Contains(servers[0].Host, "broker.example.com") {
		t.Errorf("host = %q, want broker.example.com", servers[0].Host)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("iot-core")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	offline := buildOfflinePayload("iot-core")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := testClient()

	// Track a subscription manually (Subscribe requires a live broker)
	c.subMu.Lock()
	c.subscriptions["esp32/iot/data"] = subscription{topic: "esp32/iot/data", qos: 1}
	c.subMu.Unlock()

	if !c.HasSubscription("esp32/iot/data") {
		t.Error("HasSubscription() = false, want true")
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}
}
