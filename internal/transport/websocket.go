package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSConn is a WebSocket connection carrying binary frames.
//
// Reads happen on the goroutine calling Serve; writes are serialised
// through a buffered channel drained by a dedicated write pump, so Send is
// safe for concurrent use and never blocks.
type WSConn struct {
	id     string
	conn   *websocket.Conn
	cfg    Config
	logger Logger

	send      chan []byte
	done      *closeOnce
	closeConn sync.Once
	closeErr  error
}

// NewWSConn wraps an established WebSocket connection.
func NewWSConn(conn *websocket.Conn, cfg Config, logger Logger) *WSConn {
	if logger == nil {
		logger = noopLogger{}
	}
	cfg = cfg.withDefaults()
	return &WSConn{
		id:     uuid.NewString(),
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   newCloseOnce(),
	}
}

// ID returns the connection's unique identifier.
func (c *WSConn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *WSConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Send queues a frame for writing.
func (c *WSConn) Send(frame []byte) error {
	select {
	case <-c.done.Done():
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done.Done():
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Done is closed once the connection has shut down.
func (c *WSConn) Done() <-chan struct{} { return c.done.Done() }

// Close shuts the connection down. It is safe to call more than once.
func (c *WSConn) Close() error {
	c.closeConn.Do(func() {
		c.done.Close()
		//nolint:errcheck // Best-effort close frame
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Serve runs the connection until it closes or ctx is cancelled. Every
// inbound frame is passed to handle in arrival order; a handler error ends
// the connection and is returned.
//
// A clean close by either side, or cancellation, returns nil.
func (c *WSConn) Serve(ctx context.Context, handle func(frame []byte) error) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			//nolint:errcheck // Close error is reported by the read loop
			c.Close()
		case <-c.done.Done():
		}
	}()
	defer wg.Wait()
	//nolint:errcheck // Idempotent; read loop has already failed or finished
	defer c.Close()

	err := c.readPump(handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *WSConn) readPump(handle func([]byte) error) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.resetReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.resetReadDeadline()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done.Done():
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket closed", "conn", c.id)
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		c.resetReadDeadline()
		if err := handle(frame); err != nil {
			return err
		}
	}
}

func (c *WSConn) resetReadDeadline() {
	if c.cfg.PingInterval <= 0 {
		//nolint:errcheck // Best-effort deadline
		c.conn.SetReadDeadline(time.Time{})
		return
	}
	//nolint:errcheck // Best-effort deadline
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PingInterval + c.cfg.PongTimeout))
}

func (c *WSConn) writePump() {
	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done.Done():
			return
		case frame := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.logger.Warn("websocket write failed", "conn", c.id, "error", err)
				//nolint:errcheck // Connection is being torn down
				c.Close()
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("websocket ping failed", "conn", c.id, "error", err)
				}
				//nolint:errcheck // Connection is being torn down
				c.Close()
				return
			}
		}
	}
}

// Dial opens a WebSocket connection to url.
func Dial(ctx context.Context, url string, cfg Config, logger Logger) (*WSConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		//nolint:errcheck // Handshake body is not used
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewWSConn(conn, cfg, logger), nil
}
