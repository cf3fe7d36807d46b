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

// Package stats implements the statistics entity of spec §3.4 and the
// statistics store of §4.12: time-stamped Usage/Size/Condition/
// Maintenance records per index, plus point-in-time snapshots, durable
// across restarts. Grounded on storage/index/stats.py's
// IndexUsageStats/IndexSizeStats/IndexConditionStats/
// IndexMaintenanceStats/StatisticsStore, generalized from Python's
// sqlite3 + JSON blob persistence to database/sql over
// modernc.org/sqlite with the same one-JSON-column-per-row shape.
package stats

import "time"

// Usage mirrors storage/index/stats.py's IndexUsageStats (§3.4).
type Usage struct {
	TotalReads     int64
	TotalWrites    int64
	AvgReadTimeMs  float64
	AvgWriteTimeMs float64
	CacheHits      int64
	CacheMisses    int64
	LastUsed       time.Time
}

// Size mirrors IndexSizeStats (§3.4).
type Size struct {
	TotalEntries       int64
	Depth              int
	SizeBytes          int64
	FragmentationRatio float64
	LastCompacted      time.Time
}

// Condition mirrors IndexConditionStats (§3.4); nil on a non-partial
// index's record.
type Condition struct {
	ConditionString   string
	Selectivity       float64
	FalsePositiveRate float64
	EvaluationTimeMs  float64
	LastOptimized     time.Time
}

// Maintenance mirrors IndexMaintenanceStats (§3.4).
type Maintenance struct {
	LastReindex  time.Time
	LastAnalyze  time.Time
	LastVacuum   time.Time
	RebuildCount int64
	ErrorCount   int64
}

// Record is the complete statistics entity for one index at one point
// in time (§3.4), serialized whole into the store.
type Record struct {
	IndexName   string
	TableName   string
	IndexKind   string
	CreatedAt   time.Time
	Timestamp   time.Time
	Usage       Usage
	Size        Size
	Condition   *Condition
	Maintenance Maintenance
}

// NeedsOptimization applies the same three-way check
// storage/index/stats.py's StatisticsManager._needs_optimization uses,
// with fixed thresholds. The trigger engine and the advisor do not call
// it; the trigger engine applies its own configured thresholds.
func (r Record) NeedsOptimization() bool {
	if r.Size.FragmentationRatio > 0.3 {
		return true
	}
	if r.Usage.AvgReadTimeMs > 100 {
		return true
	}
	if r.Condition != nil && r.Condition.FalsePositiveRate > 0.2 {
		return true
	}
	return false
}

// Snapshot is a derived, point-in-time metric bundle (§3.4's "snapshot
// records a derived tuple"), one of "size", "performance", or
// "condition".
type Snapshot struct {
	ID        string
	IndexName string
	Kind      string
	Data      map[string]any
	Timestamp time.Time
}
