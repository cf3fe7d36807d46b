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

// Package gist implements the Generalized Search Tree framework of spec
// §4.5: a balanced tree parameterized by a five-operation Predicate
// Strategy over a predicate type P, mirroring the insert/split/search
// shape of package rtree but generalizing "bounding box" to an arbitrary
// predicate. Grounded on storage/index/gist.py, with the Protocol turned
// into an explicit Go interface.
package gist

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// Strategy is the five-operation Predicate Strategy contract spec §4.5
// requires: consistent/union/compress/decompress/penalty/pick_split over
// predicate type P.
type Strategy[P any] interface {
	// Consistent reports whether entry could contain a match for query.
	Consistent(entry P, query any) bool
	// Union returns the minimal predicate covering every entry.
	Union(entries []P) P
	// Compress returns a (possibly lossy) summary of entry.
	Compress(entry P) P
	// Decompress inverts Compress; it may be the identity function when
	// compression is lossy.
	Decompress(entry P) P
	// Penalty costs inserting b into the subtree rooted at a.
	Penalty(a, b P) float64
	// PickSplit bipartitions entries, each side honoring minimum fill.
	PickSplit(entries []P) (left, right []P)
}

type entry[P any, V any] struct {
	key   P
	value V
	child *node[P, V]
}

type node[P any, V any] struct {
	entries []entry[P, V]
	leaf    bool
}

// decompressKey identifies one entry's slot for decompressCache: a node
// pointer plus its index within that node, both already comparable, so
// no constraint on P (which need not be comparable) leaks into the cache.
type decompressKey[P any, V any] struct {
	n   *node[P, V]
	idx int
}

// Index is a GiST tree over predicate type P carrying values of type V.
type Index[P any, V any] struct {
	mu              sync.RWMutex
	name            string
	strategy        Strategy[P]
	maxEntries      int
	minEntries      int
	root            *node[P, V]
	size            int
	decompressCache *lru.Cache[decompressKey[P, V], P]
	fanoutThreshold int
}

// New creates a GiST index bound to strategy. maxEntries defaults to 50,
// minEntries to max(2, maxEntries/3), matching the R-tree and the Python
// original's defaults.
func New[P any, V any](name string, strategy Strategy[P], maxEntries int) *Index[P, V] {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	minEntries := maxEntries / 3
	if minEntries < 2 {
		minEntries = 2
	}
	cache, _ := lru.New[decompressKey[P, V], P](256)
	return &Index[P, V]{
		name:            name,
		strategy:        strategy,
		maxEntries:      maxEntries,
		minEntries:      minEntries,
		root:            &node[P, V]{leaf: true},
		decompressCache: cache,
		fanoutThreshold: 4,
	}
}

// decompressEntry returns the decompressed form of n's idx-th entry,
// caching the result: Decompress may be expensive to invert a lossy
// Compress (e.g. trigram set reconstruction), and the same node entry is
// re-examined on every search that reaches its subtree.
func (ix *Index[P, V]) decompressEntry(n *node[P, V], idx int) P {
	key := decompressKey[P, V]{n: n, idx: idx}
	if v, ok := ix.decompressCache.Get(key); ok {
		return v
	}
	v := ix.strategy.Decompress(n.entries[idx].key)
	ix.decompressCache.Add(key, v)
	return v
}

func (ix *Index[P, V]) Name() string { return ix.name }
func (ix *Index[P, V]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Insert adds (key, value) to a leaf, storing key as given. When the root
// is a full leaf it first grows a new root level and splits the old root
// into two children (§4.5); splitNode replaces the new root's compressed
// entry with the Union of each half.
func (ix *Index[P, V]) Insert(key P, value V) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.root.entries) >= ix.maxEntries && ix.root.leaf {
		newRoot := &node[P, V]{leaf: false}
		newRoot.entries = []entry[P, V]{{key: ix.strategy.Compress(ix.rootUnion()), child: ix.root}}
		ix.root = newRoot
		ix.splitNode(ix.root, 0)
	}

	ix.insertRecursive(ix.root, key, value)
	ix.size++
}

// rootUnion computes a representative predicate for the current root
// before it becomes an interior child; an empty root unions over zero
// entries, which the strategy must handle (mirrors TrigramSet/RegexPattern
// unioning an empty slice).
func (ix *Index[P, V]) rootUnion() P {
	keys := make([]P, len(ix.root.entries))
	for i, e := range ix.root.entries {
		keys[i] = e.key
	}
	return ix.strategy.Union(keys)
}

func (ix *Index[P, V]) insertRecursive(n *node[P, V], key P, value V) {
	if n.leaf {
		n.entries = append(n.entries, entry[P, V]{key: key, value: value})
		return
	}

	bestIdx := ix.chooseSubtree(n, key)
	child := n.entries[bestIdx].child
	ix.insertRecursive(child, key, value)

	keys := make([]P, len(child.entries))
	for i, e := range child.entries {
		keys[i] = e.key
	}
	n.entries[bestIdx].key = ix.strategy.Union(keys)

	if len(child.entries) > ix.maxEntries {
		ix.splitNode(n, bestIdx)
	}
}

// chooseSubtree picks the child entry minimizing strategy.Penalty against
// key (§4.5).
func (ix *Index[P, V]) chooseSubtree(n *node[P, V], key P) int {
	best := 0
	minPenalty := -1.0
	for i, e := range n.entries {
		p := ix.strategy.Penalty(e.key, key)
		if minPenalty < 0 || p < minPenalty {
			minPenalty = p
			best = i
		}
	}
	return best
}

// splitNode delegates the bipartition to strategy.PickSplit, then
// recomputes each side's covering predicate via Union (§4.5).
func (ix *Index[P, V]) splitNode(parent *node[P, V], entryIdx int) {
	child := parent.entries[entryIdx].child

	keys := make([]P, len(child.entries))
	for i, e := range child.entries {
		keys[i] = e.key
	}
	group1, group2 := ix.strategy.PickSplit(keys)

	used := make([]bool, len(child.entries))
	take := func(target P) entry[P, V] {
		for i, e := range child.entries {
			if !used[i] && equalPredicate(e.key, target) {
				used[i] = true
				return e
			}
		}
		// fall back to the first unused entry if the strategy returned a
		// transformed (not ==-identical) predicate, e.g. after compress
		for i, e := range child.entries {
			if !used[i] {
				used[i] = true
				return e
			}
		}
		return entry[P, V]{}
	}

	left := &node[P, V]{leaf: child.leaf}
	right := &node[P, V]{leaf: child.leaf}
	for _, k := range group1 {
		left.entries = append(left.entries, take(k))
	}
	for _, k := range group2 {
		right.entries = append(right.entries, take(k))
	}

	leftKeys := make([]P, len(left.entries))
	for i, e := range left.entries {
		leftKeys[i] = e.key
	}
	rightKeys := make([]P, len(right.entries))
	for i, e := range right.entries {
		rightKeys[i] = e.key
	}

	parent.entries[entryIdx] = entry[P, V]{key: ix.strategy.Union(leftKeys), child: left}
	tail := append([]entry[P, V]{{key: ix.strategy.Union(rightKeys), child: right}}, parent.entries[entryIdx+1:]...)
	parent.entries = append(parent.entries[:entryIdx+1], tail...)
}

// equalPredicate is a best-effort identity check used only to pair
// PickSplit's returned predicates back to their source entries; it
// compares via reflection-free Go equality where P is comparable, and
// falls through to the take() fallback otherwise.
func equalPredicate[P any](a, b P) bool {
	defer func() { recover() }()
	return any(a) == any(b)
}

// Search returns every value whose entry chain is Consistent with query
// all the way down (§4.5).
func (ix *Index[P, V]) Search(query any) []V {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []V
	ix.searchRecursive(ix.root, query, &out)
	return out
}

func (ix *Index[P, V]) searchRecursive(n *node[P, V], query any, out *[]V) {
	var matchingChildren []int
	for i, e := range n.entries {
		if !ix.strategy.Consistent(e.key, query) {
			continue
		}
		if n.leaf {
			// The stored key may be a lossy Compress()ed summary (§4.5);
			// re-check Consistent against the decompressed form before
			// accepting the match, the way GiST requires for exactness.
			if ix.strategy.Consistent(ix.decompressEntry(n, i), query) {
				*out = append(*out, e.value)
			}
			continue
		}
		matchingChildren = append(matchingChildren, i)
	}
	if n.leaf || len(matchingChildren) == 0 {
		return
	}
	if len(matchingChildren) < ix.fanoutThreshold {
		for _, i := range matchingChildren {
			ix.searchRecursive(n.entries[i].child, query, out)
		}
		return
	}
	ix.searchFanOut(n, matchingChildren, query, out)
}

// searchFanOut descends into several sibling subtrees concurrently via
// errgroup when a branching node has enough matching children to make
// the fan-out worthwhile. Each goroutine accumulates into its own local
// slice; results are appended into out sequentially after Wait returns,
// so out itself is never written from more than one goroutine.
func (ix *Index[P, V]) searchFanOut(n *node[P, V], matchingChildren []int, query any, out *[]V) {
	results := make([][]V, len(matchingChildren))
	var g errgroup.Group
	for gi, i := range matchingChildren {
		gi, i := gi, i
		g.Go(func() error {
			var local []V
			ix.searchRecursive(n.entries[i].child, query, &local)
			results[gi] = local
			return nil
		})
	}
	_ = g.Wait() // searchRecursive never returns an error
	for _, r := range results {
		*out = append(*out, r...)
	}
}

// Stats mirrors the rtree.Stats bundle for a GiST tree.
type Stats struct {
	TotalEntries int
	Depth        int
	SizeBytes    int
}

func (ix *Index[P, V]) Statistics() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		TotalEntries: ix.size,
		Depth:        depthOf(ix.root),
		SizeBytes:    sizeOf(ix.root),
	}
}

func depthOf[P any, V any](n *node[P, V]) int {
	if n.leaf {
		return 1
	}
	maxChild := 0
	for _, e := range n.entries {
		if d := depthOf(e.child); d > maxChild {
			maxChild = d
		}
	}
	return 1 + maxChild
}

func sizeOf[P any, V any](n *node[P, V]) int {
	const nodeOverhead = 32
	const entryCost = 32
	size := nodeOverhead + len(n.entries)*entryCost
	if !n.leaf {
		for _, e := range n.entries {
			size += sizeOf(e.child)
		}
	}
	return size
}
