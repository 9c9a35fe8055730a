package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps entries in a kv table of a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	ctx   context.Context
	mu    sync.Mutex
	quota quota
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteQuota caps the total key+value bytes the store accepts.
func WithSQLiteQuota(bytes int64) SQLiteOption {
	return func(s *SQLiteStore) {
		s.quota.limit = bytes
	}
}

// WithSQLiteContext sets the context used for every statement.
func WithSQLiteContext(ctx context.Context) SQLiteOption {
	return func(s *SQLiteStore) {
		if ctx != nil {
			s.ctx = ctx
		}
	}
}

// OpenSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ctx: context.Background()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", sqliteSchema} {
		if _, err := db.ExecContext(s.ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: init sqlite: %w", err)
		}
	}

	var used sql.NullInt64
	err = db.QueryRowContext(s.ctx,
		`SELECT SUM(length(CAST(key AS BLOB)) + length(CAST(value AS BLOB))) FROM kv`).Scan(&used)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: measure sqlite: %w", err)
	}
	s.quota.used = used.Int64
	return s, nil
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(s.ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.sizeOf(key)
	if err != nil {
		return err
	}
	next := entrySize(key, value)
	if err := s.quota.admit(previous, next); err != nil {
		return err
	}

	_, err = s.db.ExecContext(s.ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("storage: set %q: %w", key, err)
	}
	s.quota.apply(previous, next)
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.sizeOf(key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(s.ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: remove %q: %w", key, err)
	}
	s.quota.apply(previous, 0)
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) sizeOf(key string) (int64, error) {
	var value string
	err := s.db.QueryRowContext(s.ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: size %q: %w", key, err)
	}
	return entrySize(key, value), nil
}
