package plugins

import (
	"context"

	"github.com/nerrad567/hemma-hub/internal/infrastructure/database"
	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
	"github.com/nerrad567/hemma-hub/internal/wire"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100

	// DefaultHistoryKeep is how many readings per name History retains.
	DefaultHistoryKeep = 10000
)

// HistoryEntry is one stored reading.
type HistoryEntry struct {
	Source    string `cbor:"source"`
	Data      any    `cbor:"data"`
	Timestamp int64  `cbor:"timestamp"`
}

// HistoryReply answers a history request.
type HistoryReply struct {
	Name    string         `cbor:"name"`
	Entries []HistoryEntry `cbor:"entries"`
}

// History records every source message in SQLite and answers
// {"target": "history", "name": ..., "limit": n} with the newest entries
// for that name, newest first. Only the newest keep readings per name are
// retained.
type History struct {
	plugin.Base
	db   *database.DB
	keep int
}

// NewHistory creates the history plugin. The readings table must exist.
// keep <= 0 uses DefaultHistoryKeep.
func NewHistory(id string, host plugin.Replier, db *database.DB, keep int) *History {
	if keep <= 0 {
		keep = DefaultHistoryKeep
	}
	return &History{Base: plugin.NewBase(id, "history", host), db: db, keep: keep}
}

// OnSourceMessage stores msg and trims older readings of the same name.
func (p *History) OnSourceMessage(ctx context.Context, src source.Source, msg source.Message) error {
	name := source.Name(msg)
	if name == "" {
		return nil
	}
	data, err := wire.Marshal(msg["data"])
	if err != nil {
		return nil
	}
	err = p.db.InsertReading(ctx, database.Reading{
		Source:     src.ID(),
		Name:       name,
		Data:       data,
		ReceivedAt: now(),
	})
	if err != nil {
		return err
	}
	_, err = p.db.TrimReadings(ctx, name, p.keep)
	return err
}

// OnClientRequest answers history queries.
func (p *History) OnClientRequest(ctx context.Context, client plugin.Client, request any) error {
	req, ok := targeted(request, "history")
	if !ok {
		return nil
	}
	name, _ := req["name"].(string)
	if name == "" {
		return nil
	}
	limit := defaultHistoryLimit
	if n, ok := integer(req["limit"]); ok && n > 0 {
		limit = int(min(n, maxHistoryLimit))
	}

	entries, err := p.Recent(ctx, name, limit)
	if err != nil {
		return err
	}
	return p.Reply(ctx, client, HistoryReply{Name: name, Entries: entries})
}

// Recent returns up to limit entries for name, newest first. Rows whose
// data no longer decodes are skipped.
func (p *History) Recent(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	rows, err := p.db.RecentReadings(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		e := HistoryEntry{Source: r.Source, Timestamp: r.ReceivedAt.UnixMilli()}
		if err := wire.Unmarshal(r.Data, &e.Data); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// OnClientConnect does nothing; history is pulled on request.
func (p *History) OnClientConnect(context.Context, plugin.Client) error { return nil }
