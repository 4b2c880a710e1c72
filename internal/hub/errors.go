package hub

import "errors"

var (
	// ErrUnknownSource is returned when a plugin asks for a source that is
	// not configured.
	ErrUnknownSource = errors.New("hub: unknown source")

	// ErrDuplicateSource is returned when two sources share an id.
	ErrDuplicateSource = errors.New("hub: duplicate source id")
)
