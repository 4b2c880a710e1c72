package firmware

import (
	"time"

	"github.com/nerrad567/hemma-hub/internal/transport"
)

// Defaults for the bridge connection.
const (
	// DefaultURL is where the bridge listens when none is configured.
	DefaultURL = "ws://127.0.0.1:9876"

	// DefaultRequestTimeout is how long Request waits for a result.
	DefaultRequestTimeout = 5 * time.Second

	// defaultReconnectInterval is the initial delay before redialling.
	defaultReconnectInterval = time.Second

	// defaultMaxReconnectInterval caps the redial delay.
	defaultMaxReconnectInterval = 2 * time.Minute

	// defaultQueueSize is the outbound command queue capacity.
	defaultQueueSize = 64

	// idSpace is the size of the command id ring.
	idSpace = 1024 * 1024
)

// Config holds firmware bridge settings.
type Config struct {
	// URL is the bridge's WebSocket address.
	// Default: ws://127.0.0.1:9876.
	URL string

	// RequestTimeout bounds how long Request waits for a result.
	// Default: 5 seconds.
	RequestTimeout time.Duration

	// ReconnectInterval is the first delay after a failed or lost link.
	// Default: 1 second, growing by 1.5x per consecutive failure.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the redial delay.
	// Default: 2 minutes.
	MaxReconnectInterval time.Duration

	// QueueSize is the outbound command queue capacity.
	// Default: 64.
	QueueSize int

	// Link tunes keepalive and buffering of the WebSocket link.
	// Default: transport.DefaultConfig().
	Link transport.Config
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}
	if c.MaxReconnectInterval <= 0 {
		c.MaxReconnectInterval = defaultMaxReconnectInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Link == (transport.Config{}) {
		c.Link = transport.DefaultConfig()
	}
	return c
}
