package transport

import "errors"

var (
	// ErrClosed is returned when sending on a connection that has shut down.
	ErrClosed = errors.New("transport: connection closed")

	// ErrSendBufferFull is returned when a connection cannot keep up with
	// outbound frames. The caller treats the connection as dead.
	ErrSendBufferFull = errors.New("transport: send buffer full")
)
