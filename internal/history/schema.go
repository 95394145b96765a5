package history

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL, -- fixed-width RFC 3339, UTC
    seed INTEGER NOT NULL,
    mode TEXT NOT NULL,
    reserved INTEGER NOT NULL DEFAULT 0,
    fingerprint TEXT NOT NULL,
    input_bytes INTEGER NOT NULL,
    output_bytes INTEGER NOT NULL,
    source TEXT NOT NULL,
    recipe TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
`

// InitializeSchema creates the runs table if it does not exist.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("initialize history schema: %w", err)
	}
	return nil
}
