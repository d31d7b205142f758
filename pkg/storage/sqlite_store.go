package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state_records (
	origin     TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (origin, key)
)`

// SQLiteStore persists records in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: sqlite busy_timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, ref Ref) ([]byte, bool, error) {
	n := ref.Normalize()
	if _, err := n.Identifier(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state_records WHERE origin = ? AND key = ?`,
		n.Origin, n.Key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: sqlite load %s/%s: %w", n.Origin, n.Key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ref Ref, value []byte) error {
	n := ref.Normalize()
	if _, err := n.Identifier(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO state_records (origin, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(origin, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		n.Origin, n.Key, value, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage: sqlite save %s/%s: %w", n.Origin, n.Key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ref Ref) error {
	n := ref.Normalize()
	if _, err := n.Identifier(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM state_records WHERE origin = ? AND key = ?`, n.Origin, n.Key,
	); err != nil {
		return fmt.Errorf("storage: sqlite delete %s/%s: %w", n.Origin, n.Key, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, origin string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM state_records WHERE origin = ? ORDER BY key`, NormalizeOrigin(origin),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("storage: sqlite list scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
