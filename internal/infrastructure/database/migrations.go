package database

import (
	"context"
	"fmt"
)

// schema holds the database schema, applied idempotently on startup.
//
// The devices table records telemetry sightings: which devices have been
// heard from, their last event and payload, and a running message count.
// It is deliberately small; the harness does not persist error-handler
// history or log records.
const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id             TEXT PRIMARY KEY,
	last_event     TEXT NOT NULL DEFAULT '',
	last_payload   TEXT NOT NULL DEFAULT '{}',
	message_count  INTEGER NOT NULL DEFAULT 0,
	first_seen     TIMESTAMP NOT NULL,
	last_seen      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen);
`

// Migrate applies the schema to the database.
// Safe to call on every startup; all statements are idempotent.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema application fails
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
