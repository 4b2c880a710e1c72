package mqtt

import "errors"

var (
	// ErrConnectionFailed wraps a failed or timed-out first connection.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned when subscribing while the broker link
	// is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrSubscribeFailed wraps a rejected or timed-out subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned for an empty topic filter.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)
