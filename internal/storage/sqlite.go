package storage

import (
	"fmt"
	"log"
)

type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations applies every migration newer than the recorded version.
func (s *SQLiteStorage) runMigrations() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "search_ticks", up: s.migration001SearchTicks},
		{version: 2, name: "search_candidates", up: s.migration002SearchCandidates},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		log.Printf("Running migration %d: %s", m.version, m.name)
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := s.setMigrationVersion(m.version, m.name); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

func (s *SQLiteStorage) migration001SearchTicks() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_ticks (
			tick_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			delta_time REAL NOT NULL,
			database_name TEXT,
			motion TEXT,
			pose_idx INTEGER NOT NULL,
			asset_time REAL NOT NULL,
			cost REAL,
			wanted_play_rate REAL NOT NULL,
			continuing INTEGER NOT NULL,
			searched INTEGER NOT NULL,
			jumped INTEGER NOT NULL,
			force_interrupt INTEGER NOT NULL,
			async_build INTEGER NOT NULL,
			query_builds INTEGER NOT NULL,
			query_cache_hits INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create search_ticks table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_search_ticks_timestamp
		ON search_ticks(timestamp)
	`); err != nil {
		return fmt.Errorf("failed to create search_ticks timestamp index: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_search_ticks_session
		ON search_ticks(session_id)
	`); err != nil {
		return fmt.Errorf("failed to create search_ticks session index: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) migration002SearchCandidates() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick_id TEXT NOT NULL REFERENCES search_ticks(tick_id) ON DELETE CASCADE,
			database_name TEXT NOT NULL,
			pose_idx INTEGER NOT NULL,
			cost REAL,
			flags TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create search_candidates table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_search_candidates_tick
		ON search_candidates(tick_id)
	`); err != nil {
		return fmt.Errorf("failed to create search_candidates tick index: %w", err)
	}
	return nil
}
