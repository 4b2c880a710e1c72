// Package source defines the contract between the hub and the connectors
// that feed it device data.
package source

import "context"

// Message is an item produced by a source. Sources emit maps of the form
// {"name": ..., "data": ...}; plugins pick the names they understand.
type Message = map[string]any

// Sink receives what sources produce. The hub implements it; calls
// enqueue onto the hub's single request queue and block only for
// backpressure.
type Sink interface {
	HandleIncoming(ctx context.Context, src Source, msg Message) error
	HandleConnect(ctx context.Context, src Source) error
}

// Source is a long-running connector. Run blocks until ctx is cancelled or
// the source fails permanently.
type Source interface {
	ID() string
	Run(ctx context.Context, sink Sink) error
}

// Commander is implemented by sources that can address devices.
type Commander interface {
	// Command sends a fire-and-forget command.
	Command(ctx context.Context, address int, name string, args map[string]any) error

	// Request sends a command and waits for its result. ok is false when no
	// result arrived in time; that is not an error.
	Request(ctx context.Context, address int, name string, args map[string]any) (result any, ok bool, err error)
}

// Name returns the "name" field of a source message.
func Name(msg Message) string {
	name, _ := msg["name"].(string) //nolint:errcheck // absent or non-string name is ""
	return name
}

// Data returns the "data" field of a source message as a map.
func Data(msg Message) (map[string]any, bool) {
	data, ok := msg["data"].(map[string]any)
	return data, ok
}
