package wire

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// Sizes of the fixed-length envelope fields.
const (
	KeySize          = 32
	NonceSize        = 24
	VerificationSize = 64
)

// Envelope is the frame exchanged on client connections.
//
// Requests carry all four fields. Replies carry key, nonce and payload,
// where key is the recipient's public key. Broadcasts carry only nonce and
// payload.
type Envelope struct {
	Key          []byte `cbor:"key,omitempty"`
	Nonce        []byte `cbor:"nonce"`
	Payload      []byte `cbor:"payload"`
	Verification []byte `cbor:"verification,omitempty"`
}

// DecodeRequest parses a client request frame and checks field sizes.
func DecodeRequest(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case len(env.Key) != KeySize:
		return nil, fmt.Errorf("%w: key is %d bytes", ErrMalformed, len(env.Key))
	case len(env.Nonce) != NonceSize:
		return nil, fmt.Errorf("%w: nonce is %d bytes", ErrMalformed, len(env.Nonce))
	case len(env.Verification) != VerificationSize:
		return nil, fmt.Errorf("%w: verification is %d bytes", ErrMalformed, len(env.Verification))
	}
	return &env, nil
}

// PeerKey returns the envelope key as a fixed-size array.
func (e *Envelope) PeerKey() *[KeySize]byte {
	var k [KeySize]byte
	copy(k[:], e.Key)
	return &k
}

func (e *Envelope) nonce() *[NonceSize]byte {
	var n [NonceSize]byte
	copy(n[:], e.Nonce)
	return &n
}

// OpenRequest decrypts a request payload sent by the holder of e.Key to
// the owner of privateKey, and decodes the plaintext into a generic value.
func OpenRequest(e *Envelope, privateKey *[KeySize]byte) (any, error) {
	plain, ok := box.Open(nil, e.Payload, e.nonce(), e.PeerKey(), privateKey)
	if !ok {
		return nil, ErrDecrypt
	}
	var v any
	if err := Unmarshal(plain, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlaintext, err)
	}
	return v, nil
}

// SealReply encrypts payload for target and returns the encoded frame.
func SealReply(privateKey, target *[KeySize]byte, payload any) ([]byte, error) {
	plain, err := Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding reply payload: %w", err)
	}
	nonce, err := newNonce(rand.Reader)
	if err != nil {
		return nil, err
	}
	return Marshal(Envelope{
		Key:     append([]byte(nil), target[:]...),
		Nonce:   nonce[:],
		Payload: box.Seal(nil, plain, nonce, target, privateKey),
	})
}

// SealBroadcast encrypts payload with the shared broadcast key and returns
// the encoded frame.
func SealBroadcast(key *[KeySize]byte, payload any) ([]byte, error) {
	plain, err := Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding broadcast payload: %w", err)
	}
	nonce, err := newNonce(rand.Reader)
	if err != nil {
		return nil, err
	}
	return Marshal(Envelope{
		Nonce:   nonce[:],
		Payload: secretbox.Seal(nil, plain, nonce, key),
	})
}

func newNonce(r io.Reader) (*[NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	return &n, nil
}
