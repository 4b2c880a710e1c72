package plugins

import (
	"context"

	"github.com/nerrad567/hemma-hub/internal/bridges/windcentrale"
	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// MillState is one turbine's share of production.
type MillState struct {
	ID          int64  `cbor:"id"`
	Power       int64  `cbor:"power"`
	Performance int64  `cbor:"performance"`
	Timestamp   int64  `cbor:"timestamp"`
	Name        string `cbor:"name"`
}

// Windmills scales live turbine output by the shares held in each mill.
type Windmills struct {
	plugin.Base
	shares map[int64]int64
	names  map[int64]string
	order  []int64
	state  map[int64]MillState
}

// NewWindmills creates the windcentrale plugin for the given holdings.
func NewWindmills(id string, host plugin.Replier, holdings []windcentrale.Holding) *Windmills {
	p := &Windmills{
		Base:   plugin.NewBase(id, "windcentrale", host),
		shares: make(map[int64]int64, len(holdings)),
		names:  make(map[int64]string, len(holdings)),
		state:  make(map[int64]MillState),
	}
	for _, h := range holdings {
		p.shares[int64(h.Mill.ID)] = int64(h.Shares)
		p.names[int64(h.Mill.ID)] = h.Mill.Name
	}
	return p
}

// Mills returns the known mill states in first-seen order.
func (p *Windmills) Mills() []MillState {
	out := make([]MillState, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.state[id])
	}
	return out
}

// OnSourceMessage updates one mill and broadcasts all of them. Readings
// for mills without a holding are ignored.
func (p *Windmills) OnSourceMessage(ctx context.Context, _ source.Source, msg source.Message) error {
	if source.Name(msg) != windcentrale.MessageName {
		return nil
	}
	data, ok := source.Data(msg)
	if !ok {
		return nil
	}
	id, ok := integer(data["id"])
	if !ok {
		return nil
	}
	shares, held := p.shares[id]
	if !held {
		return nil
	}
	perShare, ok1 := integer(data["per_share"])
	performance, ok2 := integer(data["performance"])
	if !ok1 || !ok2 {
		return nil
	}

	if _, seen := p.state[id]; !seen {
		p.order = append(p.order, id)
	}
	p.state[id] = MillState{
		ID:          id,
		Power:       perShare * shares,
		Performance: performance,
		Timestamp:   nowMillis(),
		Name:        p.names[id],
	}
	return p.Broadcast(ctx, p.Mills())
}

// OnClientConnect replays every known mill.
func (p *Windmills) OnClientConnect(ctx context.Context, client plugin.Client) error {
	if len(p.order) == 0 {
		return nil
	}
	return p.Reply(ctx, client, p.Mills())
}

// OnClientRequest ignores requests.
func (p *Windmills) OnClientRequest(context.Context, plugin.Client, any) error { return nil }
