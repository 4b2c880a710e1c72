package plugin

import (
	"context"
	"fmt"

	"github.com/nerrad567/hemma-hub/internal/source"
)

// HookError reports which plugin hook failed.
type HookError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Bus holds plugins in registration order and dispatches events to them.
//
// Dispatch is sequential: a plugin's hook returns before the next plugin's
// hook is called. The first error stops dispatch of that event.
type Bus struct {
	plugins []Plugin
	ids     map[string]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{ids: make(map[string]struct{})}
}

// Add appends a plugin. Plugin ids must be unique.
func (b *Bus) Add(p Plugin) error {
	if _, dup := b.ids[p.ID()]; dup {
		return fmt.Errorf("plugin %q registered twice", p.ID())
	}
	b.ids[p.ID()] = struct{}{}
	b.plugins = append(b.plugins, p)
	return nil
}

// Plugins returns the registered plugins in dispatch order.
func (b *Bus) Plugins() []Plugin {
	out := make([]Plugin, len(b.plugins))
	copy(out, b.plugins)
	return out
}

// Len returns the number of registered plugins.
func (b *Bus) Len() int { return len(b.plugins) }

// SourceConnect calls OnSourceConnect on every plugin.
func (b *Bus) SourceConnect(ctx context.Context, src source.Source) error {
	return b.each("OnSourceConnect", func(p Plugin) error {
		return p.OnSourceConnect(ctx, src)
	})
}

// SourceMessage calls OnSourceMessage on every plugin.
func (b *Bus) SourceMessage(ctx context.Context, src source.Source, msg source.Message) error {
	return b.each("OnSourceMessage", func(p Plugin) error {
		return p.OnSourceMessage(ctx, src, msg)
	})
}

// ClientConnect calls OnClientConnect on every plugin.
func (b *Bus) ClientConnect(ctx context.Context, client Client) error {
	return b.each("OnClientConnect", func(p Plugin) error {
		return p.OnClientConnect(ctx, client)
	})
}

// ClientRequest calls OnClientRequest on every plugin.
func (b *Bus) ClientRequest(ctx context.Context, client Client, request any) error {
	return b.each("OnClientRequest", func(p Plugin) error {
		return p.OnClientRequest(ctx, client, request)
	})
}

func (b *Bus) each(hook string, call func(Plugin) error) error {
	for _, p := range b.plugins {
		if err := safeCall(p, call); err != nil {
			return &HookError{Plugin: p.ID(), Hook: hook, Err: err}
		}
	}
	return nil
}

// safeCall turns a panicking hook into an error so the hub can shut down
// cleanly instead of crashing mid-dispatch.
func safeCall(p Plugin, call func(Plugin) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return call(p)
}
