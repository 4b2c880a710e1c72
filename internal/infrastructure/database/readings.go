package database

import (
	"context"
	"fmt"
	"time"
)

// receivedLayout keeps received_at sortable as text.
const receivedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Reading is one stored source message. Data holds the encoded message
// data exactly as the caller passed it.
type Reading struct {
	Source     string
	Name       string
	Data       []byte
	ReceivedAt time.Time
}

// InsertReading appends r to the readings table.
func (db *DB) InsertReading(ctx context.Context, r Reading) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO readings (source, name, data, received_at) VALUES (?, ?, ?, ?)`,
		r.Source, r.Name, r.Data, r.ReceivedAt.UTC().Format(receivedLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting %s reading: %w", r.Name, err)
	}
	return nil
}

// RecentReadings returns up to limit readings named name, newest first.
// No matches yields an empty, non-nil slice.
func (db *DB) RecentReadings(ctx context.Context, name string, limit int) ([]Reading, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT source, data, received_at FROM readings WHERE name = ? ORDER BY id DESC LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s readings: %w", name, err)
	}
	defer rows.Close()

	out := []Reading{}
	for rows.Next() {
		r := Reading{Name: name}
		var at string
		if err := rows.Scan(&r.Source, &r.Data, &at); err != nil {
			return nil, fmt.Errorf("scanning %s reading: %w", name, err)
		}
		r.ReceivedAt, _ = time.Parse(receivedLayout, at) //nolint:errcheck // Written by InsertReading
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s readings: %w", name, err)
	}
	return out, nil
}

// TrimReadings deletes all but the newest keep readings named name and
// returns how many rows went.
func (db *DB) TrimReadings(ctx context.Context, name string, keep int) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM readings WHERE name = ? AND id NOT IN (
			SELECT id FROM readings WHERE name = ? ORDER BY id DESC LIMIT ?
		)`,
		name, name, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("trimming %s readings: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trimming %s readings: %w", name, err)
	}
	return n, nil
}
