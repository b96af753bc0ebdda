package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Open opens a DuckDB database under DataDir/duckdb and creates the
// preferences table. An empty DataDir opens an in-memory database.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS prefs (key VARCHAR PRIMARY KEY, value VARCHAR NOT NULL)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return conn, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

// PrefStore is a prefs.Store backed by the DuckDB prefs table.
type PrefStore struct {
	db *sql.DB
}

// NewPrefStore wraps an open connection.
func NewPrefStore(db *sql.DB) *PrefStore {
	return &PrefStore{db: db}
}

// Get returns the value for key.
func (s *PrefStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read pref %q: %w", key, err)
	}
	return v, true, nil
}

// Set upserts the value for key.
func (s *PrefStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("write pref %q: %w", key, err)
	}
	return nil
}
