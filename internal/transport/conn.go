// Package transport wraps live duplex connections (local clients, the
// upstream link, the firmware bridge) behind a small send-side interface.
package transport

import (
	"sync"
	"time"
)

// Conn is a live connection the hub can address replies and broadcasts to.
// Send never blocks: a frame is either queued for writing or an error is
// returned and the connection should be dropped.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Logger defines the logging interface used by connections.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config tunes connection keepalive and buffering.
type Config struct {
	// PingInterval is how often a ping is written. Zero disables pings.
	PingInterval time.Duration

	// PongTimeout is how long to wait for any inbound traffic past a ping.
	PongTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// MaxMessageSize limits inbound frame size in bytes.
	MaxMessageSize int64

	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer int
}

// DefaultConfig returns the keepalive settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}
