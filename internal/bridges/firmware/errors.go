package firmware

import "errors"

var (
	// ErrIDsExhausted is returned when every command id is still awaiting
	// a result.
	ErrIDsExhausted = errors.New("firmware: no free command id")

	// ErrQueueFull is returned when the outbound command queue has no room,
	// typically because the link has been down for a while.
	ErrQueueFull = errors.New("firmware: command queue full")

	// ErrLinkClosed is returned by a session when the bridge closes the link.
	ErrLinkClosed = errors.New("firmware: bridge link closed")
)
