// Package database is the hub's optional SQLite store, opened only when a
// configured plugin needs it.
//
// It owns the readings table the history plugin writes to, and a small
// migration runner: files named YYYYMMDD_HHMMSS_description.up.sql (with
// an optional .down.sql) are applied in version order and recorded in
// schema_migrations.
package database
