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

// Package advisor implements the index advisor behind spec.md's
// analyze_index_usage(table) → {recommendations} (SPEC_FULL.md §D.1):
// it records observed (table, predicate-shape) query patterns with a
// frequency counter and recommends indexes ranked by estimated benefit.
// Grounded on storage/index/advisor.py's IndexAdvisor, generalized from
// its bool _covers_pattern (fully covered or not) to a fractional
// existing_coverage so estimated_benefit = frequency × (1 -
// existing_coverage) is a meaningful ranking rather than a binary
// gate.
package advisor

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/datapunk/indexengine/index"
)

// Pattern is one observed query shape against a table, mirroring
// QueryPattern (minus its table_name field, which keys the pattern map
// instead).
type Pattern struct {
	Columns    []string
	IsEquality bool
	IsRange    bool
}

func (p Pattern) key() string {
	return strings.Join(p.Columns, ",") + "|" + boolKey(p.IsEquality) + boolKey(p.IsRange)
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

type observedPattern struct {
	Pattern
	frequency int
}

// ColumnStats mirrors ColumnStats: distinct-value cardinality used to
// pick between a hash, B-tree, or bitmap recommendation.
type ColumnStats struct {
	DistinctValues int64
	NullCount      int64
	TotalRows      int64
}

// Cardinality is the fraction of rows holding a distinct value,
// mirroring ColumnStats.cardinality; an empty table reports 1.0 (every
// row looks unique), matching the Python default.
func (c ColumnStats) Cardinality() float64 {
	if c.TotalRows <= 0 {
		return 1.0
	}
	return float64(c.DistinctValues) / float64(c.TotalRows)
}

// ExistingIndex is a minimal description of an already-registered
// index, enough to compute coverage without needing its row-key type.
type ExistingIndex struct {
	Name    string
	Columns []string
	Kind    index.Kind
}

// Recommendation is one suggested index, naming its columns and kind
// plus the benefit score recommendations are ranked by.
type Recommendation struct {
	Columns          []string
	Kind             index.Kind
	EstimatedBenefit float64
	UseCompression   bool
}

const (
	maxRecommendations      = 5
	lowCardinalityThreshold = 0.01
	compressionCardinality  = 0.001
	compressionMinRows      = 100_000
)

// Advisor accumulates query patterns, column statistics, and existing
// indexes across tables, and turns them into ranked recommendations.
type Advisor struct {
	mu       sync.Mutex
	patterns map[string]map[string]*observedPattern // table -> pattern key -> observation
	columns  map[string]map[string]ColumnStats       // table -> column -> stats
	existing map[string][]ExistingIndex              // table -> indexes
	log      *zap.Logger
}

// New builds an empty Advisor.
func New(log *zap.Logger) *Advisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Advisor{
		patterns: make(map[string]map[string]*observedPattern),
		columns:  make(map[string]map[string]ColumnStats),
		existing: make(map[string][]ExistingIndex),
		log:      log,
	}
}

// RecordQueryPattern registers one observation of a query shape,
// mirroring add_query_pattern; it also implements
// optimizer.UsageRecorder, so the index-aware optimizer's chosen
// access path feeds the advisor directly (§4.11 step 3's "feedback
// loop").
func (a *Advisor) RecordQueryPattern(table string, columns []string, isRangeScan bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := Pattern{Columns: append([]string(nil), columns...), IsEquality: !isRangeScan, IsRange: isRangeScan}
	if a.patterns[table] == nil {
		a.patterns[table] = make(map[string]*observedPattern)
	}
	key := p.key()
	if obs, ok := a.patterns[table][key]; ok {
		obs.frequency++
		return
	}
	a.patterns[table][key] = &observedPattern{Pattern: p, frequency: 1}
}

// AddColumnStats registers cardinality statistics for table.column,
// mirroring add_column_stats.
func (a *Advisor) AddColumnStats(table, column string, stats ColumnStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.columns[table] == nil {
		a.columns[table] = make(map[string]ColumnStats)
	}
	a.columns[table][column] = stats
}

// RegisterExistingIndex records idx against table, mirroring
// register_existing_index.
func (a *Advisor) RegisterExistingIndex(table string, idx ExistingIndex) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.existing[table] = append(a.existing[table], idx)
}

// AnalyzeIndexUsage returns up to maxRecommendations new index
// suggestions for table, ranked by estimated benefit descending,
// mirroring recommend_indexes generalized with a continuous coverage
// score instead of a boolean covered/uncovered gate.
func (a *Advisor) AnalyzeIndexUsage(table string) []Recommendation {
	a.mu.Lock()
	defer a.mu.Unlock()

	observed := a.patterns[table]
	if len(observed) == 0 {
		return nil
	}

	type scored struct {
		pattern Pattern
		benefit float64
	}
	var ranked []scored
	for _, obs := range observed {
		coverage := a.existingCoverage(table, obs.Pattern)
		benefit := float64(obs.frequency) * (1 - coverage)
		if benefit <= 0 {
			continue
		}
		ranked = append(ranked, scored{pattern: obs.Pattern, benefit: benefit})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].benefit > ranked[j].benefit })

	var out []Recommendation
	for _, r := range ranked {
		if len(out) >= maxRecommendations {
			break
		}
		kind, ok := a.selectIndexKind(table, r.pattern)
		if !ok {
			continue
		}
		out = append(out, Recommendation{
			Columns:          r.pattern.Columns,
			Kind:             kind,
			EstimatedBenefit: r.benefit,
			UseCompression:   a.shouldCompress(table, r.pattern),
		})
	}
	return out
}

// existingCoverage returns the fraction of pattern's columns already
// served by an existing index via prefix matching (composite-friendly,
// mirroring _covers_pattern's zip-prefix check), 0 when no existing
// index is usable for pattern (e.g. a range query without a B-tree).
func (a *Advisor) existingCoverage(table string, p Pattern) float64 {
	best := 0.0
	for _, idx := range a.existing[table] {
		if p.IsRange && idx.Kind != index.KindBTree && idx.Kind != index.KindComposite {
			continue
		}
		n := commonPrefixLen(idx.Columns, p.Columns)
		if len(p.Columns) == 0 {
			continue
		}
		coverage := float64(n) / float64(len(p.Columns))
		if coverage > best {
			best = coverage
		}
	}
	return best
}

func commonPrefixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// selectIndexKind mirrors _select_index_type.
func (a *Advisor) selectIndexKind(table string, p Pattern) (index.Kind, bool) {
	if len(p.Columns) == 0 {
		return 0, false
	}
	if p.IsRange {
		return index.KindBTree, true
	}
	stats, ok := a.columns[table][p.Columns[0]]
	if !ok {
		a.log.Warn("no column statistics available, defaulting to btree", zap.String("table", table), zap.String("column", p.Columns[0]))
		return index.KindBTree, true
	}
	switch {
	case stats.Cardinality() < lowCardinalityThreshold:
		return index.KindBitmap, true
	case p.IsEquality:
		return index.KindHash, true
	default:
		return index.KindBTree, true
	}
}

// shouldCompress mirrors _should_use_compression.
func (a *Advisor) shouldCompress(table string, p Pattern) bool {
	if len(p.Columns) == 0 {
		return false
	}
	stats, ok := a.columns[table][p.Columns[0]]
	if !ok {
		return false
	}
	return stats.Cardinality() < compressionCardinality && stats.TotalRows > compressionMinRows
}
