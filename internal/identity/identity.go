// Package identity holds the hub's long-lived key material and the
// certificate operations built on it.
//
// The hub owns two kinds of keys:
//
//   - a Curve25519 box keypair used to seal replies and, via its public
//     half, to key the broadcast secretbox
//   - Ed25519 signing keys: the facade key that signs client public keys
//     (certificates) and the server's own signing key
//
// Secret halves are never serialised outward. Identity exposes only the
// operations that need them.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the size of a Curve25519 key in bytes.
const KeySize = 32

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Keys holds base64-encoded key material as it appears in configuration.
//
// Signing keys are 32-byte Ed25519 seeds. ServerPublicKey and
// ServerVerifyKey are optional: they are derived from their private halves
// and, when present, must match.
type Keys struct {
	ServerPublicKey  string `yaml:"server_public_key"`
	ServerPrivateKey string `yaml:"server_private_key"`
	ServerSigningKey string `yaml:"server_signing_key"`
	ServerVerifyKey  string `yaml:"server_verify_key"`
	FacadeSigningKey string `yaml:"facade_signing_key"`
}

// Identity is the hub's loaded key material.
type Identity struct {
	publicKey  [KeySize]byte
	privateKey [KeySize]byte

	serverSigning ed25519.PrivateKey
	facadeSigning ed25519.PrivateKey
}

// FromConfig decodes base64 key material into an Identity.
//
// The server private key and the facade signing key are required. A missing
// server signing key is generated for the process lifetime, since nothing
// outside the hub depends on it.
func FromConfig(k Keys) (*Identity, error) {
	id := &Identity{}

	priv, err := decodeKey("server_private_key", k.ServerPrivateKey, KeySize)
	if err != nil {
		return nil, err
	}
	copy(id.privateKey[:], priv)
	pub, err := curve25519.X25519(id.privateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: server_private_key: %v", ErrInvalidKey, err)
	}
	copy(id.publicKey[:], pub)

	if k.ServerPublicKey != "" {
		given, err := decodeKey("server_public_key", k.ServerPublicKey, KeySize)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(given, id.publicKey[:]) {
			return nil, fmt.Errorf("%w: server_public_key does not match server_private_key", ErrInvalidKey)
		}
	}

	facade, err := decodeKey("facade_signing_key", k.FacadeSigningKey, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	id.facadeSigning = ed25519.NewKeyFromSeed(facade)

	if k.ServerSigningKey == "" {
		_, id.serverSigning, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating server signing key: %w", err)
		}
	} else {
		seed, err := decodeKey("server_signing_key", k.ServerSigningKey, ed25519.SeedSize)
		if err != nil {
			return nil, err
		}
		id.serverSigning = ed25519.NewKeyFromSeed(seed)
	}

	if k.ServerVerifyKey != "" {
		given, err := decodeKey("server_verify_key", k.ServerVerifyKey, ed25519.PublicKeySize)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(given, id.serverSigning.Public().(ed25519.PublicKey)) {
			return nil, fmt.Errorf("%w: server_verify_key does not match server_signing_key", ErrInvalidKey)
		}
	}

	return id, nil
}

func decodeKey(name, value string, size int) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, name)
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKey, name, err)
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: %s: got %d bytes, want %d", ErrInvalidKey, name, len(raw), size)
	}
	return raw, nil
}

// PublicKey returns the server's box public key.
func (id *Identity) PublicKey() *[KeySize]byte {
	pk := id.publicKey
	return &pk
}

// PrivateKey returns the server's box private key. Callers must not retain
// or log it.
func (id *Identity) PrivateKey() *[KeySize]byte {
	return &id.privateKey
}

// BroadcastKey returns the secretbox key used for broadcasts: the raw bytes
// of the server's public key.
func (id *Identity) BroadcastKey() *[KeySize]byte {
	return id.PublicKey()
}

// FacadeVerifyKey returns the public half of the facade signing key.
func (id *Identity) FacadeVerifyKey() ed25519.PublicKey {
	return id.facadeSigning.Public().(ed25519.PublicKey)
}

// ServerVerifyKey returns the public half of the server signing key.
func (id *Identity) ServerVerifyKey() ed25519.PublicKey {
	return id.serverSigning.Public().(ed25519.PublicKey)
}

// IssueCertificate signs a client public key with the facade key and
// returns the detached signature.
//
// The key is signed as-is. No length or format checks are made, matching
// what paired clients already rely on.
func (id *Identity) IssueCertificate(clientPublicKey []byte) []byte {
	return ed25519.Sign(id.facadeSigning, clientPublicKey)
}

// VerifyCertificate reports whether signature is a valid facade signature
// over key.
func (id *Identity) VerifyCertificate(key, signature []byte) error {
	return VerifyCertificate(id.FacadeVerifyKey(), key, signature)
}

// VerifyCertificate checks a certificate against an explicit verify key.
func VerifyCertificate(verifyKey ed25519.PublicKey, key, signature []byte) error {
	if len(signature) != SignatureSize {
		return ErrBadCertificate
	}
	if !ed25519.Verify(verifyKey, key, signature) {
		return ErrBadCertificate
	}
	return nil
}

// Generated is freshly generated key material in configuration form.
type Generated struct {
	PrivateKey  string
	PublicKey   string
	SigningSeed string
	VerifyKey   string
}

// Generate creates a new box keypair and signing seed, base64 encoded.
func Generate(r io.Reader) (Generated, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := box.GenerateKey(r)
	if err != nil {
		return Generated{}, fmt.Errorf("generating box keypair: %w", err)
	}
	verify, signing, err := ed25519.GenerateKey(r)
	if err != nil {
		return Generated{}, fmt.Errorf("generating signing key: %w", err)
	}
	enc := base64.StdEncoding
	return Generated{
		PrivateKey:  enc.EncodeToString(priv[:]),
		PublicKey:   enc.EncodeToString(pub[:]),
		SigningSeed: enc.EncodeToString(signing.Seed()),
		VerifyKey:   enc.EncodeToString(verify),
	}, nil
}

// Keys returns configuration for an identity using the generated box
// keypair and the generated seed as facade signing key.
func (g Generated) Keys() Keys {
	return Keys{
		ServerPublicKey:  g.PublicKey,
		ServerPrivateKey: g.PrivateKey,
		FacadeSigningKey: g.SigningSeed,
	}
}
