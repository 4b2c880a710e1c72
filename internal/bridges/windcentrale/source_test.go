package windcentrale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/hemma-hub/internal/source"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []source.Message
	connects int
	notify   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 64)}
}

func (s *recordingSink) HandleIncoming(_ context.Context, _ source.Source, msg source.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return nil
}

func (s *recordingSink) HandleConnect(context.Context, source.Source) error {
	s.mu.Lock()
	s.connects++
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) wait(t *testing.T, n int) []source.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		if len(s.messages) >= n {
			out := append([]source.Message(nil), s.messages...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		select {
		case <-s.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages", n)
		}
	}
}

func TestParseHoldings(t *testing.T) {
	got, err := ParseHoldings("Het Rode Hert:4, De Vier Winden:2")
	if err != nil {
		t.Fatalf("ParseHoldings() error = %v", err)
	}
	if len(got) != 2 || got[0].Mill.ID != 31 || got[0].Shares != 4 || got[1].Mill.ID != 141 || got[1].Shares != 2 {
		t.Errorf("ParseHoldings() = %+v", got)
	}

	tests := []struct {
		list string
		want error
	}{
		{"", ErrNoMills},
		{"Het Rode Hert", ErrBadHolding},
		{"Het Rode Hert:many", ErrBadHolding},
		{"Nowhere:1", ErrUnknownMill},
		{"0:1", ErrUnknownMill},
		{"31:-1", ErrBadHolding},
	}
	for _, tt := range tests {
		if _, err := ParseHoldings(tt.list); !errors.Is(err, tt.want) {
			t.Errorf("ParseHoldings(%q) error = %v, want %v", tt.list, err, tt.want)
		}
	}
}

func TestParseHoldings_ByID(t *testing.T) {
	got, err := ParseHoldings("31:2, 7:1")
	if err != nil {
		t.Fatalf("ParseHoldings() error = %v", err)
	}
	want := []Holding{
		{Mill: Mill{ID: 31, Name: "Het Rode Hert"}, Shares: 2},
		{Mill: Mill{ID: 7, Name: "mill 7"}, Shares: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseHoldings() = %+v, want %+v", got, want)
	}
}

func TestParseLine(t *testing.T) {
	data, err := ParseLine("ZW 5,1234,56,78")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if data["wind"] != "ZW 5" || data["mill_total"] != int64(1234) || data["per_share"] != int64(56) || data["performance"] != int64(78) {
		t.Errorf("ParseLine() = %v", data)
	}

	for _, line := range []string{"ZW 5,1,2", "ZW,a,b,c"} {
		if _, err := ParseLine(line); !errors.Is(err, ErrMalformedLine) {
			t.Errorf("ParseLine(%q) error = %v, want ErrMalformedLine", line, err)
		}
	}
}

func TestRun_StreamsLinesPerMill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed/31":
			fmt.Fprintln(w, "N 3,100,10,50")
			fmt.Fprintln(w, "N 4,200,20,60")
		case "/feed/141":
			fmt.Fprintln(w, "W 2,300,30,70")
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	holdings, err := ParseHoldings("Het Rode Hert:1,De Vier Winden:1")
	if err != nil {
		t.Fatal(err)
	}
	s := New("wind", Config{Holdings: holdings, URLTemplate: srv.URL + "/feed/%d"}, Options{})
	sink := newRecordingSink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sink) }()

	msgs := sink.wait(t, 3)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v, want nil after cancel", err)
	}

	perMill := map[int64][]int64{}
	for _, m := range msgs {
		if source.Name(m) != MessageName {
			t.Errorf("message name = %q, want %q", source.Name(m), MessageName)
		}
		data, _ := source.Data(m)
		id := data["id"].(int64)
		perMill[id] = append(perMill[id], data["per_share"].(int64))
	}
	if got := perMill[31]; len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("mill 31 per_share = %v, want [10 20] in order", got)
	}
	if got := perMill[141]; len(got) != 1 || got[0] != 30 {
		t.Errorf("mill 141 per_share = %v, want [30]", got)
	}
	if sink.connects != 1 {
		t.Errorf("connects = %d, want 1", sink.connects)
	}
}

func TestRun_RetriesAfterMalformedLine(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			fmt.Fprintln(w, "garbage")
			return
		}
		fmt.Fprintln(w, "N 3,100,10,50")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	var slept []time.Duration
	var mu sync.Mutex
	sleep := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}

	holdings, _ := ParseHoldings("Het Rode Hert:1")
	s := New("wind", Config{Holdings: holdings, URLTemplate: srv.URL + "/%d"}, Options{Sleep: sleep})
	sink := newRecordingSink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sink) }()

	sink.wait(t, 1)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(slept) != 1 || slept[0] != DefaultRetryInterval {
		t.Errorf("sleeps = %v, want one %v pause", slept, DefaultRetryInterval)
	}
}

func TestRun_GivesUpOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	holdings, _ := ParseHoldings("Het Rode Hert:1")
	s := New("wind", Config{Holdings: holdings, URLTemplate: srv.URL + "/%d"}, Options{
		Sleep: func(context.Context, time.Duration) error {
			t.Error("sleep called after a refused feed")
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx, newRecordingSink()); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	if ctx.Err() != nil {
		t.Error("Run() did not return on its own")
	}
}

func TestRun_SinkFailureStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, strings.Repeat("N 3,100,10,50\n", 3))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	holdings, _ := ParseHoldings("Het Rode Hert:1")
	s := New("wind", Config{Holdings: holdings, URLTemplate: srv.URL + "/%d"}, Options{})
	boom := errors.New("queue closed")

	err := s.Run(context.Background(), failingSink{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

type failingSink struct{ err error }

func (f failingSink) HandleIncoming(context.Context, source.Source, source.Message) error { return f.err }
func (f failingSink) HandleConnect(context.Context, source.Source) error                 { return nil }
