// Package database provides SQLite connectivity for PulseGrid Core.
//
// This package manages:
//   - Database file creation and connection pragmas (WAL, busy timeout)
//   - Idempotent schema migration on startup
//   - Health checks for the supervision layer
//
// The only persisted data is the device sighting registry (see the
// device package). Error-handler state and log records are ephemeral.
package database
