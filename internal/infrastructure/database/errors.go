package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is empty")

	// ErrMissingUp is returned for a migration that only has a down file.
	ErrMissingUp = errors.New("database: migration has no up SQL")

	// ErrIrreversible is returned by MigrateDown when the newest applied
	// migration has no down file, or its files are gone.
	ErrIrreversible = errors.New("database: migration cannot be rolled back")
)
