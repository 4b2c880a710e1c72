package plugins

import (
	"context"
	"math"

	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// solarWindow is how many inverter samples are kept.
const solarWindow = 10

const millisPerHour = 3_600_000

// SolarReadings is what the solar plugin publishes.
type SolarReadings struct {
	Delivered  float64 `cbor:"delivered"`
	Production float64 `cbor:"production"`
	Timestamp  *int64  `cbor:"timestamp"`
}

// Solar tracks the inverter's cumulative total and derives the current
// production rate from the last two samples.
type Solar struct {
	plugin.Base
	totals     []float64
	timestamps []int64
}

// NewSolar creates the solar plugin.
func NewSolar(id string, host plugin.Replier) *Solar {
	return &Solar{Base: plugin.NewBase(id, "solar", host)}
}

// Readings summarises the samples seen so far.
func (p *Solar) Readings() SolarReadings {
	var r SolarReadings
	n := len(p.totals)
	if n == 0 {
		return r
	}
	r.Delivered = p.totals[n-1]
	ts := p.timestamps[n-1]
	r.Timestamp = &ts
	if n >= 2 {
		r.Production = production(p.totals[n-1]-p.totals[n-2], p.timestamps[n-2], p.timestamps[n-1])
	}
	return r
}

// production is the per-hour rate of diff over t1..t2 (milliseconds),
// rounded down.
func production(diff float64, t1, t2 int64) float64 {
	if t1 == t2 {
		return 0
	}
	hours := float64(t2-t1) / millisPerHour
	return math.Floor(diff / hours)
}

// OnSourceMessage records an inverter sample and broadcasts the readings.
func (p *Solar) OnSourceMessage(ctx context.Context, _ source.Source, msg source.Message) error {
	if source.Name(msg) != "solar" {
		return nil
	}
	data, ok := source.Data(msg)
	if !ok {
		return nil
	}
	total, ok := number(data["solar"])
	if !ok {
		return nil
	}

	p.totals = append(p.totals, total)
	p.timestamps = append(p.timestamps, nowMillis())
	if len(p.totals) > solarWindow {
		p.totals = p.totals[len(p.totals)-solarWindow:]
		p.timestamps = p.timestamps[len(p.timestamps)-solarWindow:]
	}
	return p.Broadcast(ctx, p.Readings())
}

// OnClientConnect always replies, even before the first sample.
func (p *Solar) OnClientConnect(ctx context.Context, client plugin.Client) error {
	return p.Reply(ctx, client, p.Readings())
}

// OnClientRequest ignores requests.
func (p *Solar) OnClientRequest(context.Context, plugin.Client, any) error { return nil }
