package wire

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"reflect"
	"testing"

	"golang.org/x/crypto/nacl/box"
)

type testPair struct {
	server     *Client
	serverPriv *[KeySize]byte
	client     *Client
}

func newTestPair(t *testing.T) testPair {
	t.Helper()
	serverPub, serverPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	_, facade, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error = %v", err)
	}
	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.ServerKey = serverPub
	client.Certificate = ed25519.Sign(facade, client.PublicKey[:])
	return testPair{
		server:     &Client{PublicKey: serverPub, PrivateKey: serverPriv},
		serverPriv: serverPriv,
		client:     client,
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	p := newTestPair(t)

	payloads := []any{
		"hello",
		map[string]any{"target": "ota", "address": uint64(3)},
		[]any{"a", uint64(1), true},
	}
	for _, want := range payloads {
		frame, err := p.client.Request(want)
		if err != nil {
			t.Fatalf("Request() error = %v", err)
		}
		env, err := DecodeRequest(frame)
		if err != nil {
			t.Fatalf("DecodeRequest() error = %v", err)
		}
		got, err := OpenRequest(env, p.serverPriv)
		if err != nil {
			t.Fatalf("OpenRequest() error = %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("OpenRequest() = %#v, want %#v", got, want)
		}
	}
}

func TestReply_RoundTrip(t *testing.T) {
	p := newTestPair(t)

	want := map[string]any{"label": "dht", "data": map[string]any{"temperature": 21.5}}
	frame, err := SealReply(p.serverPriv, p.client.PublicKey, want)
	if err != nil {
		t.Fatalf("SealReply() error = %v", err)
	}

	var env Envelope
	if err := Unmarshal(frame, &env); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(env.Key, p.client.PublicKey[:]) {
		t.Errorf("reply key = %x, want client public key", env.Key)
	}
	if env.Verification != nil {
		t.Errorf("reply should not carry a verification field")
	}

	got, broadcast, err := p.client.Open(frame)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if broadcast {
		t.Error("Open() reported a reply as broadcast")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Open() = %#v, want %#v", got, want)
	}
}

func TestBroadcast_RoundTrip(t *testing.T) {
	p := newTestPair(t)

	frame, err := SealBroadcast(p.server.PublicKey, "update")
	if err != nil {
		t.Fatalf("SealBroadcast() error = %v", err)
	}

	var raw map[string]any
	if err := Unmarshal(frame, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := raw["key"]; ok {
		t.Error("broadcast frame should not carry a key")
	}
	if len(raw) != 2 {
		t.Errorf("broadcast frame has %d fields, want 2 (nonce, payload)", len(raw))
	}

	got, broadcast, err := p.client.Open(frame)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !broadcast {
		t.Error("Open() did not report a broadcast")
	}
	if got != "update" {
		t.Errorf("Open() = %v, want update", got)
	}
}

func TestNoncesAreFresh(t *testing.T) {
	p := newTestPair(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		frame, err := SealReply(p.serverPriv, p.client.PublicKey, "x")
		if err != nil {
			t.Fatalf("SealReply() error = %v", err)
		}
		var env Envelope
		if err := Unmarshal(frame, &env); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if seen[string(env.Nonce)] {
			t.Fatal("nonce reused")
		}
		seen[string(env.Nonce)] = true
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	p := newTestPair(t)
	valid, err := p.client.Request("hello")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	var env Envelope
	if err := Unmarshal(valid, &env); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	reencode := func(mutate func(e *Envelope)) []byte {
		e := env
		mutate(&e)
		b, err := Marshal(e)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		return b
	}

	tests := []struct {
		name  string
		frame []byte
	}{
		{"not cbor", []byte{0xff, 0x00, 0x13}},
		{"cbor text", mustMarshal(t, "hello")},
		{"missing key", reencode(func(e *Envelope) { e.Key = nil })},
		{"short nonce", reencode(func(e *Envelope) { e.Nonce = e.Nonce[:8] })},
		{"missing verification", reencode(func(e *Envelope) { e.Verification = nil })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRequest(tt.frame); !errors.Is(err, ErrMalformed) {
				t.Errorf("DecodeRequest() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestOpenRequest_Tampered(t *testing.T) {
	p := newTestPair(t)
	frame, err := p.client.Request("hello")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	env, err := DecodeRequest(frame)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	env.Payload[0] ^= 0x01

	if _, err := OpenRequest(env, p.serverPriv); !errors.Is(err, ErrDecrypt) {
		t.Errorf("OpenRequest() error = %v, want ErrDecrypt", err)
	}
}

func TestPair(t *testing.T) {
	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	serverPub, _, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	sig := make([]byte, VerificationSize)

	frame := mustMarshal(t, Certificate{Signature: sig, Key: serverPub[:]})
	if err := c.Pair(frame); err != nil {
		t.Fatalf("Pair() error = %v", err)
	}
	if *c.ServerKey != *serverPub {
		t.Error("Pair() did not store the server key")
	}

	bad := mustMarshal(t, Certificate{Signature: sig[:3], Key: serverPub[:]})
	if err := c.Pair(bad); !errors.Is(err, ErrMalformed) {
		t.Errorf("Pair() error = %v, want ErrMalformed", err)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return b
}
