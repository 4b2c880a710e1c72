package plugins

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/database"
	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
	"github.com/nerrad567/hemma-hub/migrations"
)

func newTestHistory(t *testing.T, keep int) (*History, *recorder) {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	host := &recorder{}
	return NewHistory("history", host, db, keep), host
}

func TestHistory_RecordsAndAnswers(t *testing.T) {
	ctx := context.Background()
	p, host := newTestHistory(t, 0)

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		frozenClock(t, base.Add(time.Duration(i)*time.Second))
		msg := source.Message{"name": "dht", "data": map[string]any{"temperature": float64(20 + i)}}
		if err := p.OnSourceMessage(ctx, bridge, msg); err != nil {
			t.Fatalf("OnSourceMessage() error = %v", err)
		}
	}
	if err := p.OnSourceMessage(ctx, bridge, source.Message{"name": "p1", "data": map[string]any{}}); err != nil {
		t.Fatalf("OnSourceMessage() error = %v", err)
	}

	req := map[string]any{"target": "history", "name": "dht", "limit": uint64(2)}
	if err := p.OnClientRequest(ctx, plugin.Client{}, req); err != nil {
		t.Fatalf("OnClientRequest() error = %v", err)
	}

	replies, _ := host.sent()
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	got := content(t, replies[0], "history").(HistoryReply)
	want := HistoryReply{
		Name: "dht",
		Entries: []HistoryEntry{
			{Source: "bridge", Data: map[string]any{"temperature": 22.0}, Timestamp: base.Add(2 * time.Second).UnixMilli()},
			{Source: "bridge", Data: map[string]any{"temperature": 21.0}, Timestamp: base.Add(time.Second).UnixMilli()},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reply = %+v, want %+v", got, want)
	}
}

func TestHistory_UnknownNameIsEmpty(t *testing.T) {
	p, host := newTestHistory(t, 0)

	if err := p.OnClientRequest(context.Background(), plugin.Client{}, map[string]any{"target": "history", "name": "solar"}); err != nil {
		t.Fatalf("OnClientRequest() error = %v", err)
	}
	replies, _ := host.sent()
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if got := content(t, replies[0], "history").(HistoryReply); len(got.Entries) != 0 || got.Entries == nil {
		t.Errorf("entries = %#v, want empty list", got.Entries)
	}
}

func TestHistory_IgnoresOtherRequests(t *testing.T) {
	p, host := newTestHistory(t, 0)
	ctx := context.Background()

	for _, r := range []any{"hello", map[string]any{"target": "ota"}, map[string]any{"target": "history"}} {
		if err := p.OnClientRequest(ctx, plugin.Client{}, r); err != nil {
			t.Fatalf("OnClientRequest(%v) error = %v", r, err)
		}
	}
	if replies, _ := host.sent(); len(replies) != 0 {
		t.Errorf("replies = %v, want none", replies)
	}
}

func TestHistory_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestHistory(t, 2)

	for i := range 4 {
		msg := source.Message{"name": "solar", "data": map[string]any{"total": uint64(100 + i)}}
		if err := p.OnSourceMessage(ctx, bridge, msg); err != nil {
			t.Fatalf("OnSourceMessage() error = %v", err)
		}
	}

	entries, err := p.Recent(ctx, "solar", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent() = %d entries, want 2", len(entries))
	}
	if got := entries[0].Data.(map[string]any)["total"]; got != uint64(103) {
		t.Errorf("newest total = %v, want 103", got)
	}
}
