/*
Package storage persists matcher traces for offline analysis.

Ticks and their evaluated candidates are stored in SQLite at
~/.posematch/trace.db using modernc.org/sqlite (a pure Go, CGo-free
implementation). If the database cannot be opened the store disables
itself and every operation becomes a no-op.
*/
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Storage defines the trace persistence operations.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// RecordTicks stores ticks and their candidates in one transaction.
	RecordTicks(ticks []TickRecord) error

	// GetTicks returns up to limit ticks recorded at or after since, oldest
	// first. Candidates are not loaded.
	GetTicks(since time.Time, limit int) ([]TickRecord, error)

	// GetCandidates returns the candidates of one tick.
	GetCandidates(tickID string) ([]CandidateRecord, error)

	// Cleanup removes ticks older than retention.
	Cleanup(retention time.Duration) error

	// Clear removes every tick.
	Clear() error

	Close() error
}

// SQLiteStorage implements Storage.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
}

// DefaultPath returns ~/.posematch/trace.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".posematch", "trace.db"), nil
}

// NewStorage creates a store at the default path. If the home directory is
// unknown the store is disabled.
func NewStorage() *SQLiteStorage {
	path, err := DefaultPath()
	if err != nil {
		log.Printf("Warning: %v", err)
		return &SQLiteStorage{enabled: false}
	}
	return NewStorageAt(path)
}

// NewStorageAt creates a store at path.
func NewStorageAt(path string) *SQLiteStorage {
	return &SQLiteStorage{dbPath: path, enabled: true}
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.dbPath }

// Enabled reports whether the store is usable.
func (s *SQLiteStorage) Enabled() bool { return s.enabled && s.db != nil }

// Init opens the database and runs migrations. On failure the store is
// disabled and the error returned.
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}
	})

	return initErr
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}
