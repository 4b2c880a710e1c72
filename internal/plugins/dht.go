package plugins

import (
	"context"

	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// DHT caches the latest temperature/humidity reading.
type DHT struct {
	plugin.Base
	state any
}

// NewDHT creates the dht plugin.
func NewDHT(id string, host plugin.Replier) *DHT {
	return &DHT{Base: plugin.NewBase(id, "dht", host)}
}

// OnSourceMessage caches and broadcasts dht readings.
func (p *DHT) OnSourceMessage(ctx context.Context, _ source.Source, msg source.Message) error {
	if source.Name(msg) != "dht" {
		return nil
	}
	p.state = msg["data"]
	if !present(p.state) {
		return nil
	}
	return p.Broadcast(ctx, p.state)
}

// OnClientConnect replays the cached reading.
func (p *DHT) OnClientConnect(ctx context.Context, client plugin.Client) error {
	if !present(p.state) {
		return nil
	}
	return p.Reply(ctx, client, p.state)
}

// OnClientRequest ignores requests.
func (p *DHT) OnClientRequest(context.Context, plugin.Client, any) error { return nil }
