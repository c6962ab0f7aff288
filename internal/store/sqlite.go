// Package store persists catalog rows into an embedded SQLite database for
// fast columnar filtering. One writer (the catalog builder); consumers issue
// read-only queries.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/SmooAI/logdex/internal/catalog"
)

const batchSize = 10000

const schema = `
CREATE TABLE IF NOT EXISTS rows (
	row_id INTEGER PRIMARY KEY,
	file_id INTEGER NOT NULL,
	line_start INTEGER NOT NULL,
	line_end INTEGER NOT NULL,
	ts INTEGER,
	level TEXT,
	msg TEXT,
	error TEXT,
	correlation_id TEXT,
	name TEXT,
	service TEXT,
	namespace TEXT,
	trace_id TEXT,
	request_id TEXT,
	raw_json TEXT,
	flat_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_rows_ts ON rows(ts);

CREATE TABLE IF NOT EXISTS row_fields (
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	row_id INTEGER NOT NULL,
	PRIMARY KEY (key, value, row_id)
) WITHOUT ROWID;
`

// Store owns one database file. Each published catalog gets a fresh store;
// row ids are positions in the catalog's sorted row slice, so a re-sort
// always implies a rewrite.
type Store struct {
	db        *sql.DB
	path      string
	stmtRow   *sql.Stmt
	stmtField *sql.Stmt
}

// Open creates a store at path. An empty path places the database in a
// uniquely named file under the system temp directory.
func Open(path string) (*Store, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("logdex-%s.db", uuid.NewString()))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{db: db, path: path}
	s.stmtRow, err = db.Prepare(`
		INSERT INTO rows (row_id, file_id, line_start, line_end, ts, level, msg, error,
			correlation_id, name, service, namespace, trace_id, request_id, raw_json, flat_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare rows: %w", err)
	}
	s.stmtField, err = db.Prepare(`INSERT OR IGNORE INTO row_fields (key, value, row_id) VALUES (?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare row_fields: %w", err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// BulkInsert writes rows in catalog order; row i gets row_id i. The load is
// transactional in batches; a failed batch rolls back so the caller can
// abandon the store without a half-written table becoming visible.
func (s *Store) BulkInsert(rows []*catalog.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmtRow := tx.Stmt(s.stmtRow)
	stmtField := tx.Stmt(s.stmtField)

	count := 0
	for id, row := range rows {
		var ts any
		if row.HasTime() {
			ts = row.Time.UnixNano()
		}
		if _, err := stmtRow.Exec(
			id,
			row.FileOrdinal,
			row.LineStart,
			row.LineEnd,
			ts,
			nullable(row.Level),
			nullable(row.Message),
			nullable(row.Error),
			nullable(row.CorrelationID),
			nullable(row.Name),
			nullable(row.Service),
			nullable(row.Namespace),
			nullable(row.TraceID),
			nullable(row.RequestID),
			row.Raw,
			flatToJSON(row.Flat),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert row %d: %w", id, err)
		}
		for key, value := range row.Flat {
			if _, err := stmtField.Exec(key, value, id); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert field %q of row %d: %w", key, id, err)
			}
		}

		count++
		if count >= batchSize {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			if tx, err = s.db.Begin(); err != nil {
				return fmt.Errorf("begin batch: %w", err)
			}
			stmtRow = tx.Stmt(s.stmtRow)
			stmtField = tx.Stmt(s.stmtField)
			count = 0
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// Build the field index after the bulk load for speed.
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_fields_key ON row_fields(key, value)`); err != nil {
		return fmt.Errorf("create field index: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Count returns the number of persisted rows.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM rows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Close closes the database and removes its file.
func (s *Store) Close() error {
	if s.stmtRow != nil {
		_ = s.stmtRow.Close()
	}
	if s.stmtField != nil {
		_ = s.stmtField.Close()
	}
	err := s.db.Close()
	if s.path != "" {
		_ = os.Remove(s.path)
	}
	return err
}

var _ catalog.StoreHandle = (*Store)(nil)
