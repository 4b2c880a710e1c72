package plugins

import (
	"context"

	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// P1Readings is what the p1 plugin publishes for a meter telegram.
type P1Readings struct {
	EnergyDelivered        float64 `cbor:"energy_delivered"`
	EnergyDeliveredCurrent float64 `cbor:"energy_delivered_current"`
	EnergyReturned         float64 `cbor:"energy_returned"`
	EnergyReturnedCurrent  float64 `cbor:"energy_returned_current"`
	EnergyConsumption      float64 `cbor:"energy_consumption"`
	GasDelivered           float64 `cbor:"gas_delivered"`
	Timestamp              int64   `cbor:"timestamp"`
}

// p1Fields are the telegram fields a reading needs: two tariff registers
// each way, current power each way and the gas total.
var p1Fields = []string{"e_d_1", "e_d_2", "e_r_1", "e_r_2", "p_d", "p_r", "g_d"}

// P1 tracks the smart energy meter.
type P1 struct {
	plugin.Base
	readings *P1Readings
}

// NewP1 creates the p1 plugin.
func NewP1(id string, host plugin.Replier) *P1 {
	return &P1{Base: plugin.NewBase(id, "p1", host)}
}

// ParseP1 derives readings from a raw meter telegram. ok is false if any
// field is missing or not a number.
func ParseP1(data map[string]any, timestamp int64) (P1Readings, bool) {
	v := make(map[string]float64, len(p1Fields))
	for _, f := range p1Fields {
		n, ok := number(data[f])
		if !ok {
			return P1Readings{}, false
		}
		v[f] = n
	}
	return P1Readings{
		EnergyDelivered:        v["e_d_1"] + v["e_d_2"],
		EnergyDeliveredCurrent: v["p_d"],
		EnergyReturned:         v["e_r_1"] + v["e_r_2"],
		EnergyReturnedCurrent:  v["p_r"],
		EnergyConsumption:      v["p_d"] - v["p_r"],
		GasDelivered:           v["g_d"],
		Timestamp:              timestamp,
	}, true
}

// OnSourceMessage updates and broadcasts the meter readings. Incomplete
// telegrams are ignored.
func (p *P1) OnSourceMessage(ctx context.Context, _ source.Source, msg source.Message) error {
	if source.Name(msg) != "p1" {
		return nil
	}
	data, ok := source.Data(msg)
	if !ok || len(data) == 0 {
		return nil
	}
	r, ok := ParseP1(data, nowMillis())
	if !ok {
		return nil
	}
	p.readings = &r
	return p.Broadcast(ctx, r)
}

// OnClientConnect replays the latest readings.
func (p *P1) OnClientConnect(ctx context.Context, client plugin.Client) error {
	if p.readings == nil {
		return nil
	}
	return p.Reply(ctx, client, *p.readings)
}

// OnClientRequest ignores requests.
func (p *P1) OnClientRequest(context.Context, plugin.Client, any) error { return nil }
