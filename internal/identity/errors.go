package identity

import "errors"

// Errors returned while loading or using key material.
var (
	// ErrMissingKey is returned when a required key is absent from configuration.
	ErrMissingKey = errors.New("identity: key not configured")

	// ErrInvalidKey is returned when key material does not decode to the expected size.
	ErrInvalidKey = errors.New("identity: invalid key material")

	// ErrBadCertificate is returned when a certificate does not verify against the facade key.
	ErrBadCertificate = errors.New("identity: certificate verification failed")
)
