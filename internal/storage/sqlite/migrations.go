package sqlite

const schema = `
-- Probe samples per endpoint
CREATE TABLE IF NOT EXISTS samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint_id TEXT NOT NULL,
    latency_ms REAL,
    success BOOLEAN NOT NULL,
    error_message TEXT,
    strategy TEXT DEFAULT 'tcp',
    probed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_samples_endpoint_time
    ON samples (endpoint_id, probed_at DESC);

-- Session lifecycle events
CREATE TABLE IF NOT EXISTS session_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    endpoint_id TEXT,
    occurred_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_session_events_time
    ON session_events (occurred_at DESC);

-- Application settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

func runMigrations(d *DB) error {
	_, err := d.db.Exec(schema)
	return err
}
