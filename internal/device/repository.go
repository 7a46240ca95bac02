package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pulsegrid/pulse-core/internal/infrastructure/database"
)

// Repository provides persistence for device sightings.
type Repository interface {
	// RecordSighting upserts a device from a telemetry message and
	// returns the updated row.
	RecordSighting(ctx context.Context, id, eventType string, payload map[string]any, at time.Time) (*Device, error)

	// GetByID retrieves a device. Returns ErrDeviceNotFound if the ID
	// has never been sighted.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List returns all devices ordered by most recent sighting.
	List(ctx context.Context) ([]*Device, error)

	// Count returns the number of known devices.
	Count(ctx context.Context) (int64, error)
}

// SQLiteRepository implements Repository backed by the SQLite store.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository using the given database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordSighting upserts a device row: first sighting inserts, later
// sightings bump the message count and refresh the last-* columns.
func (r *SQLiteRepository) RecordSighting(ctx context.Context, id, eventType string, payload map[string]any, at time.Time) (*Device, error) {
	if id == "" {
		return nil, fmt.Errorf("recording sighting: empty device id")
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload for %s: %w", id, err)
	}

	query := `
		INSERT INTO devices (id, last_event, last_payload, message_count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_event = excluded.last_event,
			last_payload = excluded.last_payload,
			message_count = devices.message_count + 1,
			last_seen = excluded.last_seen`

	if _, err := r.db.ExecContext(ctx, query, id, eventType, string(payloadJSON), at.UTC(), at.UTC()); err != nil {
		return nil, fmt.Errorf("recording sighting for %s: %w", id, err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a single device row.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, last_event, last_payload, message_count, first_seen, last_seen
		FROM devices WHERE id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	return d, nil
}

// List returns all devices, most recently sighted first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Device, error) {
	query := `
		SELECT id, last_event, last_payload, message_count, first_seen, last_seen
		FROM devices ORDER BY last_seen DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Count returns the number of known devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device row, decoding the stored payload JSON.
func scanDevice(s scanner) (*Device, error) {
	var d Device
	var payloadJSON string

	if err := s.Scan(&d.ID, &d.LastEvent, &payloadJSON, &d.MessageCount, &d.FirstSeen, &d.LastSeen); err != nil {
		return nil, err
	}

	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &d.LastPayload); err != nil {
			return nil, fmt.Errorf("decoding stored payload: %w", err)
		}
	}
	return &d, nil
}
