package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "hemma-test",
		},
		Auth: config.MQTTAuthConfig{
			Username: "hub",
			Password: "pw",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers = %v, want one broker", opts.Servers)
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker = %s, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "hemma-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "hub" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if !opts.WillEnabled || opts.WillTopic != "hemma/hub/status" || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Errorf("TLS configured without broker.tls")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with broker.tls")
	}
}

func TestStatusPayload(t *testing.T) {
	var body map[string]string
	if err := json.Unmarshal([]byte(statusPayload("hub-1", "offline", "graceful_shutdown")), &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["status"] != "offline" || body["client_id"] != "hub-1" || body["reason"] != "graceful_shutdown" {
		t.Errorf("payload = %v", body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"]); err != nil {
		t.Errorf("timestamp %q: %v", body["timestamp"], err)
	}

	body = nil
	if err := json.Unmarshal([]byte(statusPayload("hub-1", "online", "")), &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if _, ok := body["reason"]; ok {
		t.Errorf("online payload has a reason: %v", body)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	if got := topics.Sensor("dht"); got != "hemma/sensor/dht" {
		t.Errorf("Sensor() = %q", got)
	}
	if got := topics.AllSensors(); got != "hemma/sensor/+" {
		t.Errorf("AllSensors() = %q", got)
	}
	if got := topics.HubStatus(); got != "hemma/hub/status" {
		t.Errorf("HubStatus() = %q", got)
	}
}

func TestSensorName(t *testing.T) {
	tests := []struct {
		topic string
		want  string
		ok    bool
	}{
		{"hemma/sensor/dht", "dht", true},
		{"hemma/sensor/p1", "p1", true},
		{"hemma/sensor/", "", false},
		{"hemma/sensor/a/b", "", false},
		{"hemma/hub/status", "", false},
		{"other/sensor/dht", "", false},
	}
	for _, tt := range tests {
		got, ok := SensorName(tt.topic)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SensorName(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name  string
		topic string
		qos   byte
		h     MessageHandler
		want  error
	}{
		{"empty topic", "", 0, noop, ErrInvalidTopic},
		{"qos 3", "hemma/sensor/+", 3, noop, ErrInvalidQoS},
		{"nil handler", "hemma/sensor/+", 0, nil, ErrSubscribeFailed},
		{"not connected", "hemma/sensor/+", 1, noop, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Subscribe(tt.topic, tt.qos, tt.h); !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() = %v, want %v", err, tt.want)
			}
		})
	}

	if len(c.subs) != 0 {
		t.Errorf("failed subscriptions were remembered: %v", c.subs)
	}
	if err := c.Unsubscribe("hemma/sensor/+"); err != nil {
		t.Errorf("Unsubscribe() = %v, want nil", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestWrap_RecoversPanics(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}
	logged := &countingLogger{}
	c.SetLogger(logged)

	handler := c.wrap(func(topic string, _ []byte) error {
		if topic == "hemma/sensor/boom" {
			panic("boom")
		}
		return errors.New("bad reading")
	})
	handler(nil, fakeMessage{topic: "hemma/sensor/boom"})
	handler(nil, fakeMessage{topic: "hemma/sensor/dht"})

	if logged.errors != 1 || logged.warns != 1 {
		t.Errorf("logged errors=%d warns=%d, want 1 and 1", logged.errors, logged.warns)
	}
}

type countingLogger struct{ errors, warns int }

func (l *countingLogger) Error(string, ...any) { l.errors++ }
func (l *countingLogger) Warn(string, ...any)  { l.warns++ }

type fakeMessage struct{ topic string }

func (fakeMessage) Duplicate() bool   { return false }
func (fakeMessage) Qos() byte         { return 0 }
func (fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string   { return m.topic }
func (fakeMessage) MessageID() uint16 { return 0 }
func (fakeMessage) Payload() []byte   { return nil }
func (fakeMessage) Ack()              {}
