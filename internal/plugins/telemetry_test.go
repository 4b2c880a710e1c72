package plugins

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/hemma-hub/internal/source"
)

type fakeWriter struct {
	sources []string
	sensors []string
	fields  []map[string]any
	times   []time.Time
}

func (w *fakeWriter) WriteReading(source, name string, fields map[string]any, ts time.Time) {
	w.sources = append(w.sources, source)
	w.sensors = append(w.sensors, name)
	w.fields = append(w.fields, fields)
	w.times = append(w.times, ts)
}

func TestTelemetry(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	frozenClock(t, at)
	w := &fakeWriter{}
	host := &recorder{}
	p := NewTelemetry("telemetry", host, w)

	msgs := []source.Message{
		{"name": "dht", "data": map[string]any{"temperature": 21.5}},
		{"name": "dht", "data": "not a map"},
		{"data": map[string]any{"x": 1.0}},
		{"name": "solar", "data": map[string]any{"solar": uint64(1200)}},
	}
	for _, m := range msgs {
		if err := p.OnSourceMessage(context.Background(), bridge, m); err != nil {
			t.Fatalf("OnSourceMessage() error = %v", err)
		}
	}

	if len(w.sensors) != 2 || w.sensors[0] != "dht" || w.sensors[1] != "solar" {
		t.Fatalf("written sensors = %v, want [dht solar]", w.sensors)
	}
	if w.sources[0] != "bridge" {
		t.Errorf("source tag = %q, want bridge", w.sources[0])
	}
	if !w.times[0].Equal(at) {
		t.Errorf("timestamp = %v, want %v", w.times[0], at)
	}
	if replies, broadcasts := host.sent(); len(replies)+len(broadcasts) != 0 {
		t.Error("telemetry should not talk to clients")
	}
}
