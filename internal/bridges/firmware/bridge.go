package firmware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/hemma-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/hemma-hub/internal/source"
	"github.com/nerrad567/hemma-hub/internal/transport"
	"github.com/nerrad567/hemma-hub/internal/wire"
)

// Logger defines the logging interface for the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Link is an open connection to the bridge.
type Link interface {
	Send(frame []byte) error
	Serve(ctx context.Context, handle func(frame []byte) error) error
	Close() error
}

// DialFunc opens a link to the bridge.
type DialFunc func(ctx context.Context, url string) (Link, error)

// Command is an outbound bridge frame.
type Command struct {
	Address int            `cbor:"address"`
	ID      uint32         `cbor:"id"`
	Name    string         `cbor:"name"`
	Args    map[string]any `cbor:"args"`
}

// queued is a command waiting for the link. waiter is nil for commands
// sent without waiting for a result.
type queued struct {
	cmd    Command
	waiter *pending
}

// pending is a command awaiting its result. result and set are written
// before done is closed.
type pending struct {
	done   chan struct{}
	result any
	set    bool
}

// Options configures optional collaborators.
type Options struct {
	Logger  Logger
	Metrics *metrics.Metrics
	Dial    DialFunc
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Bridge is a source that talks to the firmware bridge and implements
// source.Commander.
type Bridge struct {
	id      string
	cfg     Config
	logger  Logger
	metrics *metrics.Metrics
	dial    DialFunc
	sleep   func(ctx context.Context, d time.Duration) error

	outgoing chan queued

	// idMu guards the id counter and the pending table. It is held while a
	// command is queued so ids leave in allocation order; the queue send
	// never blocks.
	idMu    sync.Mutex
	current uint32
	waiting map[uint32]*pending

	connected atomic.Bool
}

var (
	_ source.Source    = (*Bridge)(nil)
	_ source.Commander = (*Bridge)(nil)
)

// New creates a bridge source with the given id.
func New(id string, cfg Config, opts Options) *Bridge {
	cfg = cfg.withDefaults()
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	b := &Bridge{
		id:       id,
		cfg:      cfg,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		dial:     opts.Dial,
		sleep:    opts.Sleep,
		outgoing: make(chan queued, cfg.QueueSize),
		waiting:  make(map[uint32]*pending),
	}
	if b.dial == nil {
		b.dial = b.dialWebSocket
	}
	return b
}

func (b *Bridge) dialWebSocket(ctx context.Context, url string) (Link, error) {
	return transport.Dial(ctx, url, b.cfg.Link, nil)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the source id.
func (b *Bridge) ID() string { return b.id }

// IsConnected reports whether a bridge link is currently up.
func (b *Bridge) IsConnected() bool { return b.connected.Load() }

// Command sends a command without waiting for a result. It returns
// ErrQueueFull when the outbound queue has no room.
func (b *Bridge) Command(ctx context.Context, address int, name string, args map[string]any) error {
	_, _, err := b.enqueue(ctx, address, name, args, false)
	return err
}

// Request sends a command and waits up to the request timeout for its
// result. When no result arrives in time it returns ok=false and a nil
// error; the waiter's entry is removed so a late result is discarded and a
// command still queued is never sent. A full queue fails at once with
// ErrQueueFull.
func (b *Bridge) Request(ctx context.Context, address int, name string, args map[string]any) (any, bool, error) {
	id, p, err := b.enqueue(ctx, address, name, args, true)
	if err != nil {
		return nil, false, err
	}

	timer := time.NewTimer(b.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		b.countRequest(metrics.OutcomeOK)
		return p.result, true, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	b.idMu.Lock()
	if p.set {
		b.idMu.Unlock()
		b.countRequest(metrics.OutcomeOK)
		return p.result, true, nil
	}
	if b.waiting[id] == p {
		delete(b.waiting, id)
	}
	b.idMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.countRequest(metrics.OutcomeTimeout)
	b.logger.Debug("bridge request timed out", "id", id, "name", name, "address", address)
	return nil, false, nil
}

func (b *Bridge) countRequest(outcome string) {
	if b.metrics != nil {
		b.metrics.BridgeRequests.WithLabelValues(outcome).Inc()
	}
}

// enqueue allocates an id, optionally registers a waiter, and queues the
// command, all under idMu.
func (b *Bridge) enqueue(ctx context.Context, address int, name string, args map[string]any, wait bool) (uint32, *pending, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	b.idMu.Lock()
	defer b.idMu.Unlock()

	id, err := b.nextID()
	if err != nil {
		return 0, nil, err
	}

	var p *pending
	if wait {
		p = &pending{done: make(chan struct{})}
		b.waiting[id] = p
	}

	cmd := Command{Address: address, ID: id, Name: name, Args: args}
	select {
	case b.outgoing <- queued{cmd: cmd, waiter: p}:
		return id, p, nil
	default:
		if wait {
			delete(b.waiting, id)
		}
		return 0, nil, fmt.Errorf("%w: %s", ErrQueueFull, name)
	}
}

// abandoned reports whether q is a request whose caller stopped waiting.
func (b *Bridge) abandoned(q queued) bool {
	if q.waiter == nil {
		return false
	}
	b.idMu.Lock()
	defer b.idMu.Unlock()
	return b.waiting[q.cmd.ID] != q.waiter
}

// nextID advances the ring counter, skipping ids that still have a waiter.
// Callers hold idMu.
func (b *Bridge) nextID() (uint32, error) {
	for range idSpace {
		b.current = (b.current + 1) % idSpace
		if _, busy := b.waiting[b.current]; !busy {
			return b.current, nil
		}
	}
	return 0, ErrIDsExhausted
}

// resolve hands a result to the waiter for id. Results nobody waits for
// are dropped.
func (b *Bridge) resolve(id uint32, result any) {
	b.idMu.Lock()
	p, ok := b.waiting[id]
	if ok {
		delete(b.waiting, id)
		p.result = result
		p.set = true
		close(p.done)
	}
	b.idMu.Unlock()

	if !ok {
		b.logger.Debug("dropping bridge result with no waiter", "id", id)
	}
}

// Run keeps a link to the bridge open until ctx is cancelled, redialling
// with exponential backoff after failures.
func (b *Bridge) Run(ctx context.Context, sink source.Sink) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.ReconnectInterval
	bo.Multiplier = 1.5
	bo.RandomizationFactor = 0
	bo.MaxInterval = b.cfg.MaxReconnectInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		link, err := b.dial(ctx, b.cfg.URL)
		if err == nil {
			bo.Reset()
			b.logger.Info("connected to firmware bridge", "url", b.cfg.URL)
			err = b.session(ctx, link, sink)
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		b.logger.Warn("firmware bridge unavailable",
			"url", b.cfg.URL,
			"error", err,
			"retry_in", wait.String(),
		)
		if err := b.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// session runs one link until it fails or ctx is cancelled. Inbound frames
// and outbound commands are served from a single select so neither side
// starves and no ready item is lost.
func (b *Bridge) session(ctx context.Context, link Link, sink source.Sink) error {
	b.connected.Store(true)
	defer b.connected.Store(false)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan []byte, 64)
	served := make(chan error, 1)
	go func() {
		served <- link.Serve(sctx, func(frame []byte) error {
			select {
			case inbound <- frame:
				return nil
			case <-sctx.Done():
				return sctx.Err()
			}
		})
	}()

	if err := sink.HandleConnect(ctx, b); err != nil {
		cancel()
		<-served
		return err
	}

	for {
		select {
		case <-ctx.Done():
			//nolint:errcheck // Shutting down
			link.Close()
			<-served
			return ctx.Err()

		case err := <-served:
			for {
				select {
				case frame := <-inbound:
					if herr := b.handleFrame(ctx, frame, sink); herr != nil {
						return herr
					}
				default:
					if err == nil {
						err = ErrLinkClosed
					}
					return err
				}
			}

		case frame := <-inbound:
			if err := b.handleFrame(ctx, frame, sink); err != nil {
				//nolint:errcheck // Shutting down
				link.Close()
				<-served
				return err
			}

		case q := <-b.outgoing:
			cmd := q.cmd
			if b.abandoned(q) {
				b.logger.Debug("skipping abandoned bridge request", "name", cmd.Name, "id", cmd.ID)
				continue
			}
			frame, err := wire.Marshal(cmd)
			if err != nil {
				b.logger.Warn("encoding bridge command failed", "name", cmd.Name, "error", err)
				continue
			}
			if err := link.Send(frame); err != nil {
				b.logger.Warn("sending bridge command failed", "name", cmd.Name, "id", cmd.ID, "error", err)
			}
		}
	}
}

// handleFrame routes one inbound frame. Undecodable frames are logged and
// skipped.
func (b *Bridge) handleFrame(ctx context.Context, frame []byte, sink source.Sink) error {
	var msg map[string]any
	if err := wire.Unmarshal(frame, &msg); err != nil {
		b.logger.Debug("ignoring undecodable bridge frame", "error", err)
		return nil
	}

	if rawID, ok := msg["id"]; ok {
		id, ok := toID(rawID)
		if !ok {
			b.logger.Debug("ignoring bridge result with invalid id", "id", fmt.Sprint(rawID))
			return nil
		}
		b.resolve(id, msg["data"])
		return nil
	}
	return sink.HandleIncoming(ctx, b, msg)
}

func toID(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint64:
		if n < idSpace {
			return uint32(n), true
		}
	case int64:
		if n >= 0 && n < idSpace {
			return uint32(n), true
		}
	}
	return 0, false
}
