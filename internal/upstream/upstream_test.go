package upstream

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/hemma-hub/internal/hub"
)

type stubConn struct{ id string }

func (c stubConn) ID() string { return c.id }
func (c stubConn) Send([]byte) error { return nil }
func (c stubConn) Close() error { return nil }
func (c stubConn) Serve(context.Context, func([]byte) error) error { return nil }

// attachFunc adapts a function to Attacher.
type attachFunc func(ctx context.Context, conn hub.StreamConn) error

func (f attachFunc) Attach(ctx context.Context, conn hub.StreamConn) error { return f(ctx, conn) }

// script drives a manager through a fixed sequence of dial outcomes and
// records every wait it asks for.
type script struct {
	outcomes []bool // true = dial succeeds
	dials    int
	sleeps   []time.Duration
	cancel   context.CancelFunc
}

func (s *script) dial(context.Context, string) (hub.StreamConn, error) {
	i := s.dials
	s.dials++
	if i >= len(s.outcomes) {
		s.cancel()
		return nil, errors.New("script finished")
	}
	if s.outcomes[i] {
		return stubConn{id: "upstream"}, nil
	}
	return nil, errors.New("connection refused")
}

func (s *script) sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return nil
}

func runScript(t *testing.T, cfg Config, outcomes []bool, target Attacher) *script {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &script{outcomes: outcomes, cancel: cancel}
	if target == nil {
		target = attachFunc(func(context.Context, hub.StreamConn) error { return nil })
	}
	cfg.URL = "ws://parent.example:1338"
	m := New(cfg, target, Options{Dial: s.dial, Sleep: s.sleep})

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() after Run = %v, want disconnected", got)
	}
	return s
}

func TestRun_BackoffGrowsAndResets(t *testing.T) {
	s := runScript(t, Config{}, []bool{false, false, false, true, false}, nil)

	want := []time.Duration{
		time.Second,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		time.Second, // link dropped: reset to base
		1500 * time.Millisecond,
	}
	if !reflect.DeepEqual(s.sleeps, want) {
		t.Errorf("sleeps = %v, want %v", s.sleeps, want)
	}
}

func TestRun_BackoffCapped(t *testing.T) {
	cfg := Config{MaxReconnectInterval: 2 * time.Second}
	s := runScript(t, cfg, []bool{false, false, false, false}, nil)

	want := []time.Duration{
		time.Second,
		1500 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
	}
	if !reflect.DeepEqual(s.sleeps, want) {
		t.Errorf("sleeps = %v, want %v", s.sleeps, want)
	}
}

func TestRun_AttachSeesConnectedState(t *testing.T) {
	var m *Manager
	var during State
	target := attachFunc(func(_ context.Context, conn hub.StreamConn) error {
		if conn.ID() != "upstream" {
			t.Errorf("attached conn = %s, want upstream", conn.ID())
		}
		during = m.State()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &script{outcomes: []bool{true}, cancel: cancel}
	m = New(Config{URL: "ws://parent"}, target, Options{Dial: s.dial, Sleep: s.sleep})
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if during != StateConnected {
		t.Errorf("state during Attach = %v, want connected", during)
	}
}

func TestRun_DisabledWithoutURL(t *testing.T) {
	m := New(Config{}, attachFunc(func(context.Context, hub.StreamConn) error {
		t.Error("Attach should not be called")
		return nil
	}), Options{})
	if err := m.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRun_StopsOnCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(Config{URL: "ws://parent"}, attachFunc(func(context.Context, hub.StreamConn) error { return nil }), Options{
		Dial: func(context.Context, string) (hub.StreamConn, error) { return nil, errors.New("refused") },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		State(9):          "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
