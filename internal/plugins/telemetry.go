package plugins

import (
	"context"
	"time"

	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// ReadingWriter stores numeric readings in a time-series database.
// *influxdb.Client satisfies it.
type ReadingWriter interface {
	WriteReading(source, name string, fields map[string]any, ts time.Time)
}

// Telemetry forwards every map-shaped reading to a ReadingWriter. It never
// talks to clients.
type Telemetry struct {
	plugin.Base
	writer ReadingWriter
}

// NewTelemetry creates the telemetry plugin.
func NewTelemetry(id string, host plugin.Replier, writer ReadingWriter) *Telemetry {
	return &Telemetry{Base: plugin.NewBase(id, "telemetry", host), writer: writer}
}

// OnSourceMessage writes the message data. Writes are asynchronous.
func (p *Telemetry) OnSourceMessage(_ context.Context, src source.Source, msg source.Message) error {
	name := source.Name(msg)
	data, ok := source.Data(msg)
	if name == "" || !ok {
		return nil
	}
	p.writer.WriteReading(src.ID(), name, data, now())
	return nil
}

// OnClientRequest ignores requests.
func (p *Telemetry) OnClientRequest(context.Context, plugin.Client, any) error { return nil }
