package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

var testMigrations = fstest.MapFS{
	"20260101_000000_sensors.up.sql":   {Data: []byte("CREATE TABLE sensors (id INTEGER PRIMARY KEY, name TEXT);")},
	"20260101_000000_sensors.down.sql": {Data: []byte("DROP TABLE sensors;")},
	"20260201_000000_mills.up.sql":     {Data: []byte("CREATE TABLE mills (id INTEGER PRIMARY KEY);")},
	"20260201_000000_mills.down.sql":   {Data: []byte("DROP TABLE mills;")},
	"README.md":                        {Data: []byte("ignored")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "sensors") || !tableExists(t, db, "mills") {
		t.Fatal("migrations did not create their tables")
	}

	// Running again is a no-op.
	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "mills") {
		t.Error("mills still exists after MigrateDown")
	}
	if !tableExists(t, db, "sensors") {
		t.Error("sensors removed by a single MigrateDown")
	}

	_, pending, err := db.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "mills" {
		t.Errorf("pending = %+v, want mills", pending)
	}
}

func TestMigrate_Failure(t *testing.T) {
	db := openTestDB(t)
	broken := fstest.MapFS{
		"20260101_000000_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260102_000000_bad.up.sql": {Data: []byte("CREATE TABLE nope (")},
	}

	if err := db.Migrate(context.Background(), broken); err == nil {
		t.Fatal("Migrate() expected error for broken SQL")
	}
	if !tableExists(t, db, "ok") {
		t.Error("earlier migration was not kept")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  string
		name     string
		isUp     bool
		ok       bool
	}{
		{"20260118_120000_initial.up.sql", "20260118_120000", "initial", true, true},
		{"20260118_120000_initial.down.sql", "20260118_120000", "initial", false, true},
		{"20260118_120000.up.sql", "20260118_120000", "", true, true},
		{"20260118_120000_initial.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
		{"single.up.sql", "", "", false, false},
	}
	for _, tt := range tests {
		version, name, isUp, ok := parseMigrationFilename(tt.filename)
		if version != tt.version || name != tt.name || isUp != tt.isUp || ok != tt.ok {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v, %v; want %q, %q, %v, %v",
				tt.filename, version, name, isUp, ok, tt.version, tt.name, tt.isUp, tt.ok)
		}
	}
}

func TestLoadMigrations_MissingUp(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_x.down.sql": {Data: []byte("DROP TABLE x;")},
	}
	if _, err := LoadMigrations(fsys); !errors.Is(err, ErrMissingUp) {
		t.Errorf("LoadMigrations() error = %v, want ErrMissingUp", err)
	}
}

func TestMigrateDown_Irreversible(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	upOnly := fstest.MapFS{
		"20260101_000000_once.up.sql": {Data: []byte("CREATE TABLE once (id INTEGER);")},
	}
	if err := db.Migrate(ctx, upOnly); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, upOnly); !errors.Is(err, ErrIrreversible) {
		t.Errorf("MigrateDown() error = %v, want ErrIrreversible", err)
	}
	if !tableExists(t, db, "once") {
		t.Error("table dropped despite the failed rollback")
	}
}
