package wire

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// Client holds the key material of a paired client: its own box keypair,
// the hub's public key, and the certificate the hub issued for it.
type Client struct {
	PublicKey   *[KeySize]byte
	PrivateKey  *[KeySize]byte
	ServerKey   *[KeySize]byte
	Certificate []byte
}

// NewClient generates a fresh client keypair. The server key and
// certificate are filled in after pairing.
func NewClient() (*Client, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating client keypair: %w", err)
	}
	return &Client{PublicKey: pub, PrivateKey: priv}, nil
}

// Request builds a signed, encrypted request frame.
func (c *Client) Request(payload any) ([]byte, error) {
	plain, err := Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}
	nonce, err := newNonce(rand.Reader)
	if err != nil {
		return nil, err
	}
	return Marshal(Envelope{
		Key:          append([]byte(nil), c.PublicKey[:]...),
		Nonce:        nonce[:],
		Payload:      box.Seal(nil, plain, nonce, c.ServerKey, c.PrivateKey),
		Verification: c.Certificate,
	})
}

// Open decodes a frame received from the hub. Frames carrying a key are
// replies sealed for this client; frames without are broadcasts.
func (c *Client) Open(frame []byte) (payload any, broadcast bool, err error) {
	var env Envelope
	if err := Unmarshal(frame, &env); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Nonce) != NonceSize {
		return nil, false, fmt.Errorf("%w: nonce is %d bytes", ErrMalformed, len(env.Nonce))
	}

	var plain []byte
	var ok bool
	if len(env.Key) == 0 {
		broadcast = true
		plain, ok = secretbox.Open(nil, env.Payload, env.nonce(), c.ServerKey)
	} else {
		plain, ok = box.Open(nil, env.Payload, env.nonce(), c.ServerKey, c.PrivateKey)
	}
	if !ok {
		return nil, broadcast, ErrDecrypt
	}
	if err := Unmarshal(plain, &payload); err != nil {
		return nil, broadcast, fmt.Errorf("%w: %v", ErrPlaintext, err)
	}
	return payload, broadcast, nil
}

// Certificate is the reply of the certificate endpoint.
type Certificate struct {
	Signature []byte `cbor:"signature"`
	Key       []byte `cbor:"key"`
}

// Pair stores a certificate reply on the client.
func (c *Client) Pair(frame []byte) error {
	var cert Certificate
	if err := Unmarshal(frame, &cert); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(cert.Key) != KeySize || len(cert.Signature) != VerificationSize {
		return fmt.Errorf("%w: certificate reply has unexpected field sizes", ErrMalformed)
	}
	var k [KeySize]byte
	copy(k[:], cert.Key)
	c.ServerKey = &k
	c.Certificate = cert.Signature
	return nil
}
