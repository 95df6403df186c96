package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; schema_version records the last applied
// index so restarts are idempotent.
var migrations = []string{
	`CREATE TABLE users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin      INTEGER NOT NULL DEFAULT 0,
		disabled      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE rooms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		location   TEXT,
		capacity   INTEGER NOT NULL CHECK (capacity > 0),
		facilities TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE bookings (
		id             TEXT PRIMARY KEY,
		room_id        TEXT NOT NULL REFERENCES rooms(id),
		date           TEXT NOT NULL,
		start_time     TEXT NOT NULL,
		end_time       TEXT NOT NULL CHECK (end_time > start_time),
		status         TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled')),
		group_id       TEXT NOT NULL,
		parent_id      TEXT REFERENCES bookings(id),
		requester_id   TEXT NOT NULL REFERENCES users(id),
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		attendee_count INTEGER NOT NULL DEFAULT 0,
		private        INTEGER NOT NULL DEFAULT 0,
		items          TEXT NOT NULL DEFAULT '[]',
		admin_notes    TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	// The partial unique index is the authority on slot uniqueness:
	// concurrent submissions that pass the in-process conflict check still
	// collide here, and cancelled rows free their slot for rebooking.
	`CREATE UNIQUE INDEX idx_bookings_active_slot
		ON bookings (room_id, date, start_time, end_time)
		WHERE status != 'cancelled'`,
	`CREATE INDEX idx_bookings_group ON bookings (group_id)`,
	`CREATE INDEX idx_bookings_room_date ON bookings (room_id, date)`,
	`CREATE TABLE sessions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id),
		token       TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL DEFAULT '',
		expires_at  TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		revoked_at  TEXT
	)`,
	`CREATE INDEX idx_sessions_expires ON sessions (expires_at)`,
}

// Migrate brings the schema up to date. Safe to call on every startup.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.DB().ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err := pool.DB().QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if _, err := pool.DB().ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("failed to initialize schema_version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		statement := migrations[i]
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(statement); err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
			if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", i+1, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
