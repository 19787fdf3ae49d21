// Package store implements crawld persistence on sqlite via sqlx.
// It owns three tables: sources (crawl targets), items (deduplicated
// collected records) and crawl_logs (append-only cycle audit trail).
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	slug            TEXT NOT NULL UNIQUE,
	url             TEXT NOT NULL,
	crawler_type    TEXT NOT NULL DEFAULT 'static',
	extractor       TEXT NOT NULL DEFAULT '',
	config          TEXT NOT NULL DEFAULT '{}',
	crawl_interval  INTEGER NOT NULL DEFAULT 10,
	is_active       INTEGER NOT NULL DEFAULT 1,
	last_crawled_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id    INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	payload      TEXT NOT NULL,
	url          TEXT NOT NULL,
	fingerprint  TEXT NOT NULL UNIQUE,
	collected_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_source_collected
	ON items (source_id, collected_at DESC);

CREATE TABLE IF NOT EXISTS crawl_logs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id        INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	status           TEXT NOT NULL,
	items_collected  INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMP NOT NULL,
	completed_at     TIMESTAMP NOT NULL,
	duration_seconds REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crawl_logs_source_started
	ON crawl_logs (source_id, started_at DESC);
`

// Store wraps the sqlite database handle.
type Store struct {
	db *sqlx.DB
}

// Open connects to the sqlite database at path (created if absent) and
// applies the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
