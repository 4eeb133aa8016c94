package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"gametunnel/internal/storage/models"
)

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &DB{db: db}

	// Run migrations
	if err := runMigrations(store); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Sample operations ──────────────────────────────────────────────────────

func (d *DB) RecordSample(ctx context.Context, sample *models.SampleRecord) error {
	query := `
		INSERT INTO samples (endpoint_id, latency_ms, success, error_message, strategy, probed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query,
		sample.EndpointID, sample.LatencyMS, sample.Success,
		sample.ErrorMessage, sample.Strategy, sample.ProbedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sample.ID = id
	return nil
}

func (d *DB) GetLatestSample(ctx context.Context, endpointID string) (*models.SampleRecord, error) {
	query := `
		SELECT id, endpoint_id, latency_ms, success, error_message, strategy, probed_at
		FROM samples
		WHERE endpoint_id = ?
		ORDER BY probed_at DESC
		LIMIT 1
	`
	sample := &models.SampleRecord{}
	err := d.db.QueryRowContext(ctx, query, endpointID).Scan(
		&sample.ID, &sample.EndpointID, &sample.LatencyMS, &sample.Success,
		&sample.ErrorMessage, &sample.Strategy, &sample.ProbedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sample, nil
}

func (d *DB) GetSampleHistory(ctx context.Context, endpointID string, limit int) ([]*models.SampleRecord, error) {
	query := `
		SELECT id, endpoint_id, latency_ms, success, error_message, strategy, probed_at
		FROM samples
		WHERE endpoint_id = ?
		ORDER BY probed_at DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*models.SampleRecord
	for rows.Next() {
		sample := &models.SampleRecord{}
		if err := rows.Scan(
			&sample.ID, &sample.EndpointID, &sample.LatencyMS, &sample.Success,
			&sample.ErrorMessage, &sample.Strategy, &sample.ProbedAt,
		); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// PruneSamples keeps only the most recent keepPerEndpoint samples for every
// endpoint, so the table doesn't grow without bound.
func (d *DB) PruneSamples(ctx context.Context, keepPerEndpoint int) error {
	query := `
		DELETE FROM samples
		WHERE id NOT IN (
			SELECT id FROM samples AS s
			WHERE s.endpoint_id = samples.endpoint_id
			ORDER BY s.probed_at DESC
			LIMIT ?
		)
	`
	_, err := d.db.ExecContext(ctx, query, keepPerEndpoint)
	if err != nil {
		return fmt.Errorf("failed to prune samples: %w", err)
	}
	return nil
}

// ─── Session event operations ───────────────────────────────────────────────

func (d *DB) RecordSessionEvent(ctx context.Context, event *models.SessionEvent) error {
	query := `
		INSERT INTO session_events (session_id, event_type, endpoint_id, occurred_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query,
		event.SessionID, event.EventType, event.EndpointID, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record session event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

func (d *DB) GetSessionEvents(ctx context.Context, limit int) ([]*models.SessionEvent, error) {
	query := `
		SELECT id, session_id, event_type, endpoint_id, occurred_at
		FROM session_events
		ORDER BY occurred_at DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.SessionEvent
	for rows.Next() {
		event := &models.SessionEvent{}
		if err := rows.Scan(
			&event.ID, &event.SessionID, &event.EventType, &event.EndpointID, &event.OccurredAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (d *DB) CountSessionEvents(ctx context.Context, eventType string) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_events WHERE event_type = ?`, eventType,
	).Scan(&count)
	return count, err
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return value, err
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}
