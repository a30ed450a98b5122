// Package recorder persists raw feed payloads to a size-capped SQLite
// store for offline inspection. The SDK itself keeps no local state;
// this is opt-in tooling for the record/inspect commands.
package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradeforge/kalshi-go/internal/telemetry"
)

const evictPct = 0.10 // evict oldest 10% of rows when over budget

// Store appends feed payloads to a FIFO SQLite database capped at
// maxBytes. The oldest 10% of rows are evicted when the cap is exceeded.
type Store struct {
	db         *sql.DB
	maxBytes   int64
	mu         sync.Mutex
	cachedSize int64
	rowCount   int64
}

func Open(path string, maxBytes int64) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS feed_payloads (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			received  TEXT    NOT NULL,
			channel   TEXT    NOT NULL,
			ticker    TEXT,
			byte_size INTEGER NOT NULL,
			raw       BLOB    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_ticker ON feed_payloads(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_channel ON feed_payloads(channel)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema (%s): %w", stmt, err)
		}
	}

	var size int64
	row := db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&size); err != nil {
		db.Close()
		return nil, fmt.Errorf("read db size: %w", err)
	}

	var count int64
	row = db.QueryRow(`SELECT COUNT(*) FROM feed_payloads`)
	if err := row.Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("read row count: %w", err)
	}

	telemetry.Infof("feed store opened  path=%s  db_bytes=%d  rows=%d", path, size, count)

	return &Store{db: db, maxBytes: maxBytes, cachedSize: size, rowCount: count}, nil
}

// Insert appends one raw payload.
func (s *Store) Insert(channel, ticker string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO feed_payloads (received, channel, ticker, byte_size, raw) VALUES (?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		channel,
		ticker,
		len(raw),
		raw,
	)
	if err != nil {
		return fmt.Errorf("feed payload insert: %w", err)
	}
	s.rowCount++

	// Refresh cached size periodically and check eviction.
	if s.rowCount%100 == 0 {
		s.refreshSize()
		if s.cachedSize > s.maxBytes {
			s.evict()
		}
	}
	return nil
}

// Count returns the current row count.
func (s *Store) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowCount
}

func (s *Store) Close() error {
	return s.db.Close()
}

// refreshSize re-reads the database size. Caller must hold mu.
func (s *Store) refreshSize() {
	row := s.db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`)
	var size int64
	if err := row.Scan(&size); err == nil {
		s.cachedSize = size
	}
}

// evict deletes the oldest rows and reclaims pages. Caller must hold mu.
func (s *Store) evict() {
	n := int64(float64(s.rowCount) * evictPct)
	if n == 0 {
		return
	}

	res, err := s.db.Exec(
		`DELETE FROM feed_payloads WHERE id IN (SELECT id FROM feed_payloads ORDER BY id LIMIT ?)`, n)
	if err != nil {
		telemetry.Warnf("feed store evict: %v", err)
		return
	}
	deleted, _ := res.RowsAffected()
	s.rowCount -= deleted

	if _, err := s.db.Exec(`PRAGMA incremental_vacuum`); err != nil {
		telemetry.Warnf("feed store vacuum: %v", err)
	}
	s.refreshSize()

	telemetry.Infof("feed store evicted %d rows  db_bytes=%d  rows=%d", deleted, s.cachedSize, s.rowCount)
}
