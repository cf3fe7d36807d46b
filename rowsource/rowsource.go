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

// Package rowsource defines the collaborator interface (§6.2) a table
// layer implements so the engine can rebuild an index from a fresh
// snapshot: a stream of (key, value, row) triples. The core never reads
// a table directly; every reindex operation goes through a Source.
package rowsource

import (
	"context"

	"github.com/datapunk/indexengine/condition"
)

// Entry is one row's contribution to an index being rebuilt: the key and
// value the index would store, plus the row dict a partial index's
// Condition evaluates against.
type Entry[K any, V any] struct {
	Key   K
	Value V
	Row   condition.Row
}

// Source iterates every live row a table exposes for reindexing. Next
// returns (zero, false, nil) once exhausted; a non-nil error aborts the
// reindex without partially truncating the prior index (§4.8: "rebuild
// failures do not block reads; the existing structure remains serving").
type Source[K any, V any] interface {
	Next(ctx context.Context) (Entry[K, V], bool, error)
}

// SliceSource adapts an in-memory slice of entries to Source, the shape
// tests and small migrations use in place of a real table scan.
type SliceSource[K any, V any] struct {
	entries []Entry[K, V]
	pos     int
}

// NewSliceSource wraps entries for sequential iteration.
func NewSliceSource[K any, V any](entries []Entry[K, V]) *SliceSource[K, V] {
	return &SliceSource[K, V]{entries: entries}
}

func (s *SliceSource[K, V]) Next(ctx context.Context) (Entry[K, V], bool, error) {
	if err := ctx.Err(); err != nil {
		var zero Entry[K, V]
		return zero, false, err
	}
	if s.pos >= len(s.entries) {
		var zero Entry[K, V]
		return zero, false, nil
	}
	e := s.entries[s.pos]
	s.pos++
	return e, true, nil
}
