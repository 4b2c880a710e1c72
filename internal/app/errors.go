package app

import "errors"

var (
	// ErrUnknownModule is returned for a source or plugin type with no
	// factory.
	ErrUnknownModule = errors.New("app: unknown module type")

	// ErrMissingSource is returned when a plugin names a source that is not
	// configured.
	ErrMissingSource = errors.New("app: referenced source not configured")

	// ErrNotCommander is returned when the ota plugin is pointed at a source
	// that cannot address devices.
	ErrNotCommander = errors.New("app: source cannot send device commands")

	// ErrNoHoldings is returned when the windcentrale plugin has no mills to
	// scale by.
	ErrNoHoldings = errors.New("app: windcentrale plugin needs mills")
)
