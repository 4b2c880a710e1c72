// Package plugin defines the plugin contract and the ordered dispatch bus.
//
// Plugins are called from a single goroutine, the hub's request consumer,
// so their private state needs no locking. A plugin that starts its own
// goroutines must synchronise whatever those goroutines touch.
package plugin

import (
	"context"

	"github.com/nerrad567/hemma-hub/internal/source"
	"github.com/nerrad567/hemma-hub/internal/transport"
)

// Client identifies the caller of a client hook: the connection the request
// arrived on and the caller's public key, which replies are sealed to.
type Client struct {
	Conn transport.Conn
	Key  *[32]byte
}

// Replier is the capability plugins use to talk back to clients.
type Replier interface {
	Reply(ctx context.Context, conn transport.Conn, key *[32]byte, payload any) error
	Broadcast(ctx context.Context, payload any) error
}

// Host is what the hub offers a plugin at construction time.
type Host interface {
	Replier
	Source(id string) (source.Source, bool)
}

// Plugin reacts to source and client events.
//
// OnSourceMessage and OnClientRequest must be implemented by every plugin.
// OnSourceConnect and OnClientConnect default to no-ops when Base is
// embedded.
type Plugin interface {
	ID() string
	Label() string

	OnSourceConnect(ctx context.Context, src source.Source) error
	OnSourceMessage(ctx context.Context, src source.Source, msg source.Message) error
	OnClientConnect(ctx context.Context, client Client) error
	OnClientRequest(ctx context.Context, client Client, request any) error
}

// Content is the wrapper every plugin payload travels in.
type Content struct {
	Label string `cbor:"label"`
	Data  any    `cbor:"data"`
}

// Base provides identity, the default hooks and the reply helpers.
type Base struct {
	id    string
	label string
	host  Replier
}

// NewBase returns a Base for the plugin with the given id and label.
func NewBase(id, label string, host Replier) Base {
	return Base{id: id, label: label, host: host}
}

// ID returns the plugin's configured id.
func (b *Base) ID() string { return b.id }

// Label returns the label content is tagged with.
func (b *Base) Label() string { return b.label }

// OnSourceConnect does nothing.
func (b *Base) OnSourceConnect(context.Context, source.Source) error { return nil }

// OnClientConnect does nothing.
func (b *Base) OnClientConnect(context.Context, Client) error { return nil }

// Reply sends content to one client, tagged with the plugin label.
func (b *Base) Reply(ctx context.Context, client Client, content any) error {
	return b.host.Reply(ctx, client.Conn, client.Key, Content{Label: b.label, Data: content})
}

// Broadcast sends content to every connection, tagged with the plugin label.
func (b *Base) Broadcast(ctx context.Context, content any) error {
	return b.host.Broadcast(ctx, Content{Label: b.label, Data: content})
}
