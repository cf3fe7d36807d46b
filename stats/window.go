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
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// windowEntry is one (indexName, timestamp) -> Record row of the
// in-memory recent window.
type windowEntry struct {
	indexName string
	timestamp time.Time
	record    Record
}

func windowLess(a, b windowEntry) bool {
	if a.indexName != b.indexName {
		return a.indexName < b.indexName
	}
	return a.timestamp.Before(b.timestamp)
}

// Window is an in-memory, ordered recent-statistics index, letting the
// trigger engine's growth-rate check read the last few records for
// an index without a round trip through Store's SQLite file on every
// check (§4.10's trigger evaluation runs on a short interval and must
// stay cheap). It retains, per index, at most keepPerIndex records.
type Window struct {
	mu           sync.Mutex
	tree         *btree.BTreeG[windowEntry]
	keepPerIndex int
	counts       map[string]int
}

// NewWindow builds an empty window retaining at most keepPerIndex
// records per index name.
func NewWindow(keepPerIndex int) *Window {
	if keepPerIndex <= 0 {
		keepPerIndex = 1
	}
	return &Window{
		tree:         btree.NewBTreeG(windowLess),
		keepPerIndex: keepPerIndex,
		counts:       make(map[string]int),
	}
}

// Observe records rec in the window, evicting the oldest entry for its
// index once keepPerIndex is exceeded.
func (w *Window) Observe(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := windowEntry{indexName: rec.IndexName, timestamp: rec.Timestamp, record: rec}
	w.tree.Set(entry)
	w.counts[rec.IndexName]++

	if w.counts[rec.IndexName] > w.keepPerIndex {
		lo := windowEntry{indexName: rec.IndexName, timestamp: time.Time{}}
		w.tree.Ascend(lo, func(oldest windowEntry) bool {
			if oldest.indexName != rec.IndexName {
				return false
			}
			w.tree.Delete(oldest)
			w.counts[rec.IndexName]--
			return false
		})
	}
}

// Recent returns up to n most recent records for name, newest first.
func (w *Window) Recent(name string, n int) []Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Record
	hi := windowEntry{indexName: name, timestamp: time.Unix(1<<62, 0)}
	w.tree.Descend(hi, func(e windowEntry) bool {
		if e.indexName != name {
			return false
		}
		out = append(out, e.record)
		return len(out) < n
	})
	return out
}

// Latest returns the most recent record observed for name.
func (w *Window) Latest(name string) (Record, bool) {
	recent := w.Recent(name, 1)
	if len(recent) == 0 {
		return Record{}, false
	}
	return recent[0], true
}
