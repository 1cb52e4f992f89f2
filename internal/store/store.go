package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the durable metadata table, keyed by catalog item id.
// Writes are buffered in memory until Flush; reads see buffered writes.
type Store struct {
	conn    *sql.DB
	Path    string
	pending map[int64]*Item
}

// Open opens (or creates) a metadata store with WAL mode enabled.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{conn: conn, Path: path, pending: make(map[int64]*Item)}, nil
}

// OpenReadOnly opens an existing store without creating schema. Used by
// checkpoint verification, which must fail on a missing or corrupt file.
func OpenReadOnly(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening metadata store read-only: %w", err)
	}
	s := &Store{conn: conn, Path: path, pending: make(map[int64]*Item)}
	// sql.Open is lazy; force a real read so corruption surfaces here.
	if _, err := s.Count(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("verifying metadata store %s: %w", path, err)
	}
	return s, nil
}

// Close flushes buffered writes and closes the connection.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	item_id        INTEGER PRIMARY KEY,
	data           TEXT NOT NULL,
	last_updated   INTEGER NOT NULL,
	priority_score REAL NOT NULL DEFAULT 0,
	is_dormant     INTEGER NOT NULL DEFAULT 0,
	dormant_since  INTEGER,
	last_checked   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_items_seed
	ON items (priority_score DESC) WHERE is_dormant = 0;
CREATE INDEX IF NOT EXISTS idx_items_checked
	ON items (last_checked);
`
