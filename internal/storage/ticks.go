package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// RecordTicks stores ticks and their candidates.
func (s *SQLiteStorage) RecordTicks(ticks []TickRecord) error {
	if !s.enabled || s.db == nil || len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tickStmt, err := tx.Prepare(`
		INSERT INTO search_ticks (
			tick_id, session_id, timestamp, delta_time, database_name, motion,
			pose_idx, asset_time, cost, wanted_play_rate, continuing, searched,
			jumped, force_interrupt, async_build, query_builds, query_cache_hits
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tick insert: %w", err)
	}
	defer tickStmt.Close()

	candStmt, err := tx.Prepare(`
		INSERT INTO search_candidates (tick_id, database_name, pose_idx, cost, flags)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare candidate insert: %w", err)
	}
	defer candStmt.Close()

	for _, t := range ticks {
		if _, err := tickStmt.Exec(
			t.TickID, t.SessionID, t.Timestamp.UTC().Format(timeLayout), t.DeltaTime,
			t.Database, t.Motion, t.PoseIdx, t.AssetTime, nullFloat(t.Cost), t.WantedPlayRate,
			boolInt(t.Continuing), boolInt(t.Searched), boolInt(t.Jumped),
			boolInt(t.ForceInterrupt), boolInt(t.AsyncBuild), t.QueryBuilds, t.QueryCacheHits,
		); err != nil {
			return fmt.Errorf("failed to insert tick %s: %w", t.TickID, err)
		}
		for _, c := range t.Candidates {
			if _, err := candStmt.Exec(t.TickID, c.Database, c.PoseIdx, nullFloat(c.Cost), c.Flags); err != nil {
				return fmt.Errorf("failed to insert candidate of tick %s: %w", t.TickID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticks: %w", err)
	}
	return nil
}

// GetTicks returns up to limit ticks recorded at or after since, oldest first.
// A non-positive limit returns every matching tick.
func (s *SQLiteStorage) GetTicks(since time.Time, limit int) ([]TickRecord, error) {
	if !s.enabled || s.db == nil {
		return []TickRecord{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT tick_id, session_id, timestamp, delta_time, database_name, motion,
			pose_idx, asset_time, cost, wanted_play_rate, continuing, searched,
			jumped, force_interrupt, async_build, query_builds, query_cache_hits
		FROM search_ticks
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, rowid ASC
		LIMIT ?
	`, since.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	ticks := []TickRecord{}
	for rows.Next() {
		var (
			t                                          TickRecord
			ts                                         string
			database, motion                           sql.NullString
			cost                                       sql.NullFloat64
			continuing, searched, jumped, force, async int
		)
		if err := rows.Scan(
			&t.TickID, &t.SessionID, &ts, &t.DeltaTime, &database, &motion,
			&t.PoseIdx, &t.AssetTime, &cost, &t.WantedPlayRate, &continuing, &searched,
			&jumped, &force, &async, &t.QueryBuilds, &t.QueryCacheHits,
		); err != nil {
			log.Printf("Warning: failed to scan tick row: %v", err)
			continue
		}
		t.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			log.Printf("Warning: failed to parse timestamp: %v", err)
			continue
		}
		t.Database = database.String
		t.Motion = motion.String
		t.Cost = floatPtr(cost)
		t.Continuing = continuing == 1
		t.Searched = searched == 1
		t.Jumped = jumped == 1
		t.ForceInterrupt = force == 1
		t.AsyncBuild = async == 1
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// GetCandidates returns the candidates of one tick in evaluation order.
func (s *SQLiteStorage) GetCandidates(tickID string) ([]CandidateRecord, error) {
	if !s.enabled || s.db == nil {
		return []CandidateRecord{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT database_name, pose_idx, cost, flags
		FROM search_candidates
		WHERE tick_id = ?
		ORDER BY id ASC
	`, tickID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	out := []CandidateRecord{}
	for rows.Next() {
		var c CandidateRecord
		var cost sql.NullFloat64
		if err := rows.Scan(&c.Database, &c.PoseIdx, &cost, &c.Flags); err != nil {
			log.Printf("Warning: failed to scan candidate row: %v", err)
			continue
		}
		c.Cost = floatPtr(cost)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Cleanup removes ticks older than retention, with their candidates.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	return s.deleteTicks("WHERE timestamp < ?", cutoff)
}

// Clear removes every tick.
func (s *SQLiteStorage) Clear() error {
	if !s.enabled || s.db == nil {
		return nil
	}
	return s.deleteTicks("")
}

func (s *SQLiteStorage) deleteTicks(where string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM search_candidates
		WHERE tick_id IN (SELECT tick_id FROM search_ticks `+where+`)
	`, args...); err != nil {
		return fmt.Errorf("failed to delete candidates: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM search_ticks "+where, args...); err != nil {
		return fmt.Errorf("failed to delete ticks: %w", err)
	}
	return tx.Commit()
}
