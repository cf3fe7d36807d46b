// Copyright 2021 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/datapunk/indexengine/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	index_name TEXT NOT NULL,
	table_name TEXT NOT NULL,
	index_kind TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	stats_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS index_snapshots (
	id TEXT PRIMARY KEY,
	index_name TEXT NOT NULL,
	snapshot_kind TEXT NOT NULL,
	snapshot_data TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stats_index_name ON index_stats(index_name);
CREATE INDEX IF NOT EXISTS idx_stats_timestamp ON index_stats(timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_index_name ON index_snapshots(index_name);
`

// Store is the durable, SQLite-backed statistics store of §4.12,
// generalized from storage/index/stats.py's StatisticsStore. A single
// *sql.DB is safe for concurrent use by multiple goroutines (unlike
// the Python original's one-connection-per-thread dance around a
// single sqlite3 file), so Store needs no connection pooling of its
// own. Errors here are plain wrapped errors rather than *indexerr.Error:
// they describe a storage-layer I/O failure, not one of the
// index-engine's classified operation outcomes.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or attaches to a SQLite statistics database at path,
// creating the schema on first use.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("stats: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: create schema: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists rec as the current statistics for its index, mirroring
// StatisticsStore.save_stats.
func (s *Store) Append(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("stats: marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO index_stats (index_name, table_name, index_kind, created_at, stats_json, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.IndexName, rec.TableName, rec.IndexKind, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(payload), rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("stats: append record: %w", err)
	}
	return nil
}

// AppendSnapshot persists a derived point-in-time metric bundle,
// mirroring save_snapshot; when snap.ID is empty an id is minted via
// google/uuid.
func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO index_snapshots (id, index_name, snapshot_kind, snapshot_data, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.IndexName, snap.Kind, string(data), snap.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: append snapshot: %w", err)
	}
	return snap, nil
}

// LatestByIndex returns the most recently appended record for name,
// mirroring get_latest_stats; ok is false when no record exists.
func (s *Store) LatestByIndex(ctx context.Context, name string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT stats_json FROM index_stats WHERE index_name = ? ORDER BY timestamp DESC LIMIT 1`, name)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("stats: query latest: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, false, fmt.Errorf("stats: unmarshal record: %w", err)
	}
	return rec, true, nil
}

// History returns records for name between start and end inclusive,
// ordered oldest first, mirroring get_stats_history. A zero start or
// end leaves that bound open.
func (s *Store) History(ctx context.Context, name string, start, end time.Time) ([]Record, error) {
	query := "SELECT stats_json FROM index_stats WHERE index_name = ?"
	args := []any{name}
	if !start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, start.UTC().Format(time.RFC3339Nano))
	}
	if !end.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, end.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stats: query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("stats: scan history row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("stats: unmarshal record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Snapshots returns the most recent limit snapshots of kind for name,
// newest first, mirroring get_snapshots.
func (s *Store) Snapshots(ctx context.Context, name, kind string, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_data, timestamp FROM index_snapshots
		 WHERE index_name = ? AND snapshot_kind = ? ORDER BY timestamp DESC LIMIT ?`,
		name, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("stats: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var id, data, ts string
		if err := rows.Scan(&id, &data, &ts); err != nil {
			return nil, fmt.Errorf("stats: scan snapshot row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("stats: parse snapshot timestamp: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("stats: unmarshal snapshot: %w", err)
		}
		out = append(out, Snapshot{ID: id, IndexName: name, Kind: kind, Data: fields, Timestamp: parsed})
	}
	return out, rows.Err()
}

// Expire removes statistics and snapshots older than daysToKeep,
// mirroring cleanup_old_stats; now is passed in rather than taken from
// time.Now so callers can test deterministically.
func (s *Store) Expire(ctx context.Context, now time.Time, daysToKeep int) error {
	cutoff := now.UTC().Add(-time.Duration(daysToKeep) * 24 * time.Hour).Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_stats WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("stats: expire records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_snapshots WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("stats: expire snapshots: %w", err)
	}
	return nil
}
