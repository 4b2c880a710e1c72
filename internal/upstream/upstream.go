// Package upstream keeps the hub linked to a parent hub.
//
// The link is treated like any local client connection: it joins the
// broadcast registry and its frames go through the same request queue.
// When it cannot connect, or the link drops, the manager waits and tries
// again. The wait starts at one second and grows by half after every
// consecutive failure, up to a ceiling; a successful connection resets it.
package upstream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/hemma-hub/internal/hub"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/hemma-hub/internal/transport"
)

// Backoff defaults.
const (
	// DefaultReconnectInterval is the first wait after a failure.
	DefaultReconnectInterval = time.Second

	// DefaultMaxReconnectInterval caps the wait between attempts.
	DefaultMaxReconnectInterval = 2 * time.Minute

	// Multiplier is applied to the wait after each consecutive failure.
	Multiplier = 1.5
)

// State is the link state.
type State int32

// Link states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Config holds upstream link settings.
type Config struct {
	// URL is the parent hub's stream endpoint. Empty disables the link.
	URL string

	// ReconnectInterval is the first wait after a failure.
	// Default: 1 second.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the wait.
	// Default: 2 minutes.
	MaxReconnectInterval time.Duration

	// Conn tunes the link's keepalive.
	Conn transport.Config
}

// Attacher takes ownership of an established link until it ends.
type Attacher interface {
	Attach(ctx context.Context, conn hub.StreamConn) error
}

// DialFunc opens the link.
type DialFunc func(ctx context.Context, url string) (hub.StreamConn, error)

// Logger defines the logging interface for the manager.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Options configures optional collaborators.
type Options struct {
	Logger  Logger
	Metrics *metrics.Metrics
	Dial    DialFunc
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Manager runs the upstream link state machine.
type Manager struct {
	cfg     Config
	target  Attacher
	logger  Logger
	metrics *metrics.Metrics
	dial    DialFunc
	sleep   func(ctx context.Context, d time.Duration) error

	state atomic.Int32
}

// New creates a manager that hands each established link to target.
func New(cfg Config, target Attacher, opts Options) *Manager {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = DefaultMaxReconnectInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Dial == nil {
		connCfg := cfg.Conn
		opts.Dial = func(ctx context.Context, url string) (hub.StreamConn, error) {
			return transport.Dial(ctx, url, connCfg, nil)
		}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Manager{
		cfg:     cfg,
		target:  target,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		dial:    opts.Dial,
		sleep:   opts.Sleep,
	}
}

// NewBackOff returns the reconnect policy: exponential growth by
// Multiplier from initial, without jitter, capped at ceiling, never giving
// up.
func NewBackOff(initial, ceiling time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.Multiplier = Multiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = ceiling
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// State returns the current link state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	if m.metrics != nil {
		connected := 0.0
		if s == StateConnected {
			connected = 1
		}
		m.metrics.UpstreamConnected.Set(connected)
	}
}

// Run keeps the link up until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.cfg.URL == "" {
		m.logger.Info("upstream link disabled")
		return nil
	}

	bo := NewBackOff(m.cfg.ReconnectInterval, m.cfg.MaxReconnectInterval)
	for {
		m.setState(StateConnecting)
		if m.metrics != nil {
			m.metrics.UpstreamReconnects.Inc()
		}

		conn, err := m.dial(ctx, m.cfg.URL)
		if err == nil {
			bo.Reset()
			m.setState(StateConnected)
			m.logger.Info("upstream connected", "url", m.cfg.URL)
			err = m.target.Attach(ctx, conn)
		}
		m.setState(StateDisconnected)

		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		m.logger.Warn("upstream unavailable",
			"url", m.cfg.URL,
			"error", err,
			"retry_in", wait.String(),
		)
		if err := m.sleep(ctx, wait); err != nil {
			return nil
		}
	}
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
