package wire

import "errors"

// Errors returned by the envelope codec. Callers on the receive path treat
// all of them as grounds for a silent drop.
var (
	// ErrMalformed is returned when a frame is not a valid CBOR envelope.
	ErrMalformed = errors.New("wire: malformed envelope")

	// ErrDecrypt is returned when a payload fails authentication.
	ErrDecrypt = errors.New("wire: payload decryption failed")

	// ErrPlaintext is returned when a decrypted payload is not valid CBOR.
	ErrPlaintext = errors.New("wire: payload is not valid cbor")
)
