// Package history records resolution requests in SQLite for diagnostics.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS resolutions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	words      TEXT NOT NULL DEFAULT '',
	matched    INTEGER NOT NULL DEFAULT 0,
	missed     TEXT NOT NULL DEFAULT '[]',
	outcome    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_resolutions_session ON resolutions(session_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_created ON resolutions(created_at);
`

// Recorder is the write/read surface consumers depend on.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Verify *DB satisfies Recorder at compile time.
var _ Recorder = (*DB)(nil)

// DB wraps a sql.DB with history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Prune deletes records older than the given age and returns how many went.
func (db *DB) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM resolutions WHERE created_at < ?`, time.Now().Add(-olderThan).UTC())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}
