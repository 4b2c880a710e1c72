package windcentrale

import "errors"

var (
	// ErrNoMills is returned when no holdings are configured.
	ErrNoMills = errors.New("windcentrale: no mills configured")

	// ErrUnknownMill is returned for a mill name not in Mills.
	ErrUnknownMill = errors.New("windcentrale: unknown mill")

	// ErrBadHolding is returned for a malformed name:shares entry.
	ErrBadHolding = errors.New("windcentrale: malformed holding")

	// ErrUnexpectedStatus is returned when the live feed answers with
	// anything but 200. The feed for that mill is not retried.
	ErrUnexpectedStatus = errors.New("windcentrale: unexpected status")

	// ErrMalformedLine is returned for a feed line that is not
	// wind,mill_total,per_share,performance.
	ErrMalformedLine = errors.New("windcentrale: malformed line")
)
