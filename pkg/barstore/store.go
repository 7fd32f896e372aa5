// Package barstore implements the OHLC bar store (spec.md §3 Bar, §6 "Bar
// store"): a single `bars` table keyed on (symbol, timeframe, time),
// written by the Data Sync Worker and read by the backtester and strategies.
//
// Grounded on pkg/db/db.go's Database wrapper and single-writer
// SetMaxOpenConns(1) policy; the teacher's one schema.go/queries.go pair is
// split the same way here, adapted from the teacher's user-scoped trading
// tables to bars keyed on (symbol, timeframe, time).
package barstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle bars are read from and written to.
type Store struct {
	db *sql.DB
	bw *batchWriter
}

// Open creates (if needed) and opens the bar store at path, then applies
// the schema. SQLite prefers a single writer (spec.md §5: "writers
// serialize per connection"), so the pool is capped at one connection,
// matching the teacher's pkg/db.New.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("barstore: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("barstore: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("barstore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, err
	}
	s.bw = newBatchWriter(db, 500, 500*time.Millisecond)
	return s, nil
}

// Close flushes any buffered writes and releases the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.bw != nil {
		s.bw.close()
	}
	return s.db.Close()
}

// WriterMetrics reports how much the bar store's batch writer has flushed,
// for operators inspecting sync-worker throughput.
func (s *Store) WriterMetrics() batchWriterMetrics {
	return s.bw.metricsSnapshot()
}

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS bars (
    symbol      TEXT    NOT NULL,
    timeframe   TEXT    NOT NULL,
    time        INTEGER NOT NULL,
    open        REAL    NOT NULL,
    high        REAL    NOT NULL,
    low         REAL    NOT NULL,
    close       REAL    NOT NULL,
    tick_volume INTEGER NOT NULL DEFAULT 0,
    spread      INTEGER NOT NULL DEFAULT 0,
    real_volume INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (symbol, timeframe, time)
);

CREATE INDEX IF NOT EXISTS idx_bars_symbol_timeframe_time
    ON bars (symbol, timeframe, time);
`

func (s *Store) applySchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("barstore: apply schema: %w", err)
	}
	return nil
}
