package observability

import "database/sql"

// Schema is the DDL for the proseai metrics database. It is kept apart from
// the settings database so metric writes never contend with settings reads.
const Schema = `
CREATE TABLE IF NOT EXISTS metrics_timeseries (
    metric_id TEXT PRIMARY KEY DEFAULT ('met_' || hex(randomblob(16))),
    metric_name TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    value REAL NOT NULL,
    labels TEXT,
    unit TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time
    ON metrics_timeseries(metric_name, timestamp DESC);

CREATE TABLE IF NOT EXISTS rewrite_events (
    event_id TEXT PRIMARY KEY,
    request_id TEXT,
    source TEXT NOT NULL,
    provider TEXT NOT NULL DEFAULT '',
    tone TEXT NOT NULL DEFAULT '',
    text_len INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rewrite_events_time ON rewrite_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rewrite_events_provider ON rewrite_events(provider, outcome);
`

// Init applies the metrics schema to db.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
