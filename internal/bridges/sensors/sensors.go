// Package sensors turns MQTT sensor topics into hub source messages.
//
// A reading published as JSON on hemma/sensor/<name> becomes the source
// message {"name": <name>, "data": <decoded JSON>}, so a sensor that
// publishes to hemma/sensor/dht feeds the dht plugin exactly like the
// firmware bridge would.
package sensors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/hemma-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// ErrBadTopic is returned for a message on a topic with no sensor name.
var ErrBadTopic = errors.New("sensors: topic has no sensor name")

// Subscriber is the part of the MQTT client the source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface for the source.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Source subscribes to sensor topics for as long as it runs.
type Source struct {
	id     string
	client Subscriber
	topic  string
	qos    byte
	logger Logger
}

var _ source.Source = (*Source)(nil)

// New creates a sensor source. An empty topic subscribes to every sensor.
func New(id string, client Subscriber, topic string, qos byte, logger Logger) *Source {
	if topic == "" {
		topic = mqtt.Topics{}.AllSensors()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Source{id: id, client: client, topic: topic, qos: qos, logger: logger}
}

// ID returns the source id.
func (s *Source) ID() string { return s.id }

// Run subscribes and forwards readings until ctx is cancelled. Readings are
// handed to the sink from the MQTT client's delivery goroutine, so a full
// hub queue holds back delivery rather than dropping readings.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	err := s.client.Subscribe(s.topic, s.qos, func(topic string, payload []byte) error {
		msg, err := Decode(topic, payload)
		if err != nil {
			s.logger.Debug("ignoring sensor message", "topic", topic, "error", err)
			return nil
		}
		return sink.HandleIncoming(ctx, s, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topic, err)
	}

	if err := sink.HandleConnect(ctx, s); err != nil {
		return err
	}

	<-ctx.Done()
	//nolint:errcheck // Shutting down
	s.client.Unsubscribe(s.topic)
	return nil
}

// Decode builds a source message from a sensor topic and its JSON payload.
func Decode(topic string, payload []byte) (source.Message, error) {
	name, ok := mqtt.SensorName(topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", name, err)
	}
	return source.Message{"name": name, "data": data}, nil
}
