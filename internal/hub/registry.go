package hub

import (
	"context"

	"github.com/nerrad567/hemma-hub/internal/transport"
)

// StreamConn is a connection the hub can both address and read from.
type StreamConn interface {
	transport.Conn
	Serve(ctx context.Context, handle func(frame []byte) error) error
}

// Register adds a connection to the broadcast registry.
func (h *Hub) Register(conn transport.Conn) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	n := len(h.conns)
	h.mu.Unlock()

	h.metrics.ConnectionsActive.Set(float64(n))
	h.logger.Debug("connection registered", "conn", conn.ID(), "connections", n)
}

// Unregister removes a connection from the broadcast registry. Removing a
// connection that is not registered is a no-op.
func (h *Hub) Unregister(conn transport.Conn) {
	h.mu.Lock()
	_, existed := h.conns[conn.ID()]
	delete(h.conns, conn.ID())
	n := len(h.conns)
	h.mu.Unlock()

	if existed {
		h.metrics.ConnectionsActive.Set(float64(n))
		h.logger.Debug("connection unregistered", "conn", conn.ID(), "connections", n)
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// snapshot copies the registry under the read lock so sends happen without
// holding it.
func (h *Hub) snapshot() []transport.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]transport.Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Attach registers conn and feeds each of its frames into the request queue
// until the connection ends. The connection is unregistered on return.
func (h *Hub) Attach(ctx context.Context, conn StreamConn) error {
	h.Register(conn)
	defer h.Unregister(conn)

	return conn.Serve(ctx, func(frame []byte) error {
		return h.Enqueue(ctx, conn, frame)
	})
}
