// Package hub is the root of a running hemma hub. It owns the key
// material, the connection registry, the request queue and the plugin bus,
// and it routes every inbound item through them.
//
// Inbound work of every kind (client frames, source messages, source
// connects) goes through one FIFO queue with a single consumer, so plugins
// only ever run on that consumer goroutine.
package hub

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/hemma-hub/internal/identity"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
	"github.com/nerrad567/hemma-hub/internal/transport"
	"github.com/nerrad567/hemma-hub/internal/wire"
)

// DefaultQueueSize is the request queue capacity when none is configured.
const DefaultQueueSize = 256

// Logger defines the logging interface for the hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Hub.
type Options struct {
	// QueueSize is the request queue capacity. Enqueue blocks when full.
	QueueSize int

	Logger  Logger
	Metrics *metrics.Metrics
}

type eventKind int

const (
	eventClientFrame eventKind = iota
	eventSourceMessage
	eventSourceConnect
)

type event struct {
	kind  eventKind
	conn  transport.Conn
	frame []byte
	src   source.Source
	msg   source.Message
}

// Hub routes requests between connections, sources and plugins.
type Hub struct {
	id          *identity.Identity
	facadeKey   ed25519.PublicKey
	logger      Logger
	metrics     *metrics.Metrics
	bus         *plugin.Bus
	queue       chan event
	sources     map[string]source.Source
	sourceOrder []string

	mu    sync.RWMutex
	conns map[string]transport.Conn
}

// New creates a hub for the given identity.
func New(id *identity.Identity, opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Hub{
		id:        id,
		facadeKey: id.FacadeVerifyKey(),
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		bus:       plugin.NewBus(),
		queue:     make(chan event, opts.QueueSize),
		sources:   make(map[string]source.Source),
		conns:     make(map[string]transport.Conn),
	}
}

// Identity returns the hub's key material.
func (h *Hub) Identity() *identity.Identity { return h.id }

// Metrics returns the hub's instruments.
func (h *Hub) Metrics() *metrics.Metrics { return h.metrics }

// AddSource registers a source. Sources must be added before Run.
func (h *Hub) AddSource(src source.Source) error {
	if _, dup := h.sources[src.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.ID())
	}
	h.sources[src.ID()] = src
	h.sourceOrder = append(h.sourceOrder, src.ID())
	return nil
}

// Source returns the source with the given id.
func (h *Hub) Source(id string) (source.Source, bool) {
	src, ok := h.sources[id]
	return src, ok
}

// Sources returns all sources in registration order.
func (h *Hub) Sources() []source.Source {
	out := make([]source.Source, 0, len(h.sourceOrder))
	for _, id := range h.sourceOrder {
		out = append(out, h.sources[id])
	}
	return out
}

// AddPlugin appends a plugin to the dispatch bus. Plugins must be added
// before Run.
func (h *Hub) AddPlugin(p plugin.Plugin) error {
	return h.bus.Add(p)
}

// Plugins returns the registered plugins in dispatch order.
func (h *Hub) Plugins() []plugin.Plugin {
	return h.bus.Plugins()
}

// Enqueue puts a client frame on the request queue. It blocks while the
// queue is full.
func (h *Hub) Enqueue(ctx context.Context, conn transport.Conn, frame []byte) error {
	return h.push(ctx, event{kind: eventClientFrame, conn: conn, frame: frame})
}

// HandleIncoming queues a source message for the plugins.
func (h *Hub) HandleIncoming(ctx context.Context, src source.Source, msg source.Message) error {
	h.metrics.SourceMessages.WithLabelValues(src.ID()).Inc()
	return h.push(ctx, event{kind: eventSourceMessage, src: src, msg: msg})
}

// HandleConnect queues a source-connected notification for the plugins.
func (h *Hub) HandleConnect(ctx context.Context, src source.Source) error {
	return h.push(ctx, event{kind: eventSourceConnect, src: src})
}

func (h *Hub) push(ctx context.Context, ev event) error {
	select {
	case h.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes the request queue until ctx is cancelled. A plugin hook
// error is fatal and is returned.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("hub running",
		"plugins", h.bus.Len(),
		"sources", len(h.sourceOrder),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.queue:
			h.metrics.RequestQueueBacklog.Set(float64(len(h.queue)))
			if err := h.dispatch(ctx, ev); err != nil {
				h.logger.Error("plugin failed, stopping hub", "error", err)
				return err
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev event) error {
	switch ev.kind {
	case eventClientFrame:
		return h.HandleRequest(ctx, ev.conn, ev.frame)
	case eventSourceMessage:
		return h.bus.SourceMessage(ctx, ev.src, ev.msg)
	case eventSourceConnect:
		h.logger.Info("source connected", "source", ev.src.ID())
		return h.bus.SourceConnect(ctx, ev.src)
	default:
		return fmt.Errorf("unknown event kind %d", ev.kind)
	}
}

// HandleRequest authenticates, decrypts and dispatches one client frame.
//
// Frames that fail to decode, carry an invalid certificate, or fail to
// decrypt are dropped without a reply. Only plugin errors are returned.
func (h *Hub) HandleRequest(ctx context.Context, conn transport.Conn, frame []byte) error {
	h.metrics.RequestsReceived.Inc()

	env, err := wire.DecodeRequest(frame)
	if err != nil {
		h.drop(conn, metrics.DropMalformed)
		return nil
	}
	if err := identity.VerifyCertificate(h.facadeKey, env.Key, env.Verification); err != nil {
		h.drop(conn, metrics.DropCertificate)
		return nil
	}
	request, err := wire.OpenRequest(env, h.id.PrivateKey())
	if err != nil {
		if errors.Is(err, wire.ErrPlaintext) {
			h.drop(conn, metrics.DropPlaintext)
		} else {
			h.drop(conn, metrics.DropDecrypt)
		}
		return nil
	}

	client := plugin.Client{Conn: conn, Key: env.PeerKey()}
	if s, ok := request.(string); ok && s == "hello" {
		if err := h.Reply(ctx, conn, client.Key, "hello"); err != nil {
			return err
		}
		return h.bus.ClientConnect(ctx, client)
	}
	return h.bus.ClientRequest(ctx, client, request)
}

func (h *Hub) drop(conn transport.Conn, reason string) {
	h.metrics.RouterDropped.WithLabelValues(reason).Inc()
	h.logger.Debug("request dropped", "conn", conn.ID(), "reason", reason)
}

// Reply seals payload for the holder of key and sends it on conn.
//
// A connection that fails to accept the frame is removed from the registry
// and closed; that is not reported as an error.
func (h *Hub) Reply(_ context.Context, conn transport.Conn, key *[32]byte, payload any) error {
	frame, err := wire.SealReply(h.id.PrivateKey(), key, payload)
	if err != nil {
		return fmt.Errorf("sealing reply: %w", err)
	}
	if err := conn.Send(frame); err != nil {
		h.logger.Debug("reply not delivered", "conn", conn.ID(), "error", err)
		h.evict(conn)
		return nil
	}
	h.metrics.RepliesSent.Inc()
	return nil
}

// Broadcast seals payload once with the broadcast key and sends the same
// frame to every registered connection. Connections that fail are removed;
// delivery to the rest continues.
func (h *Hub) Broadcast(_ context.Context, payload any) error {
	frame, err := wire.SealBroadcast(h.id.BroadcastKey(), payload)
	if err != nil {
		return fmt.Errorf("sealing broadcast: %w", err)
	}

	for _, conn := range h.snapshot() {
		if err := conn.Send(frame); err != nil {
			h.metrics.BroadcastFailures.Inc()
			h.logger.Debug("broadcast not delivered", "conn", conn.ID(), "error", err)
			h.evict(conn)
		}
	}
	h.metrics.BroadcastsSent.Inc()
	return nil
}

func (h *Hub) evict(conn transport.Conn) {
	h.Unregister(conn)
	//nolint:errcheck // Connection already failed
	conn.Close()
}
