package settings

import "database/sql"

// Schema stores one JSON value per key. rev is bumped on every write so
// watchers see changes from any connection.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    rev INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// Init applies the settings schema to db.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
