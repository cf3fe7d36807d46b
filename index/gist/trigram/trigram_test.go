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

package trigram_test

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/index/gist"
	"github.com/datapunk/indexengine/index/gist/trigram"
)

func TestUncompressedConsistentRequiresContainment(t *testing.T) {
	strat := trigram.New(0.3)
	entry := trigram.FromText("hello world")
	// a query string is padded too, so FromText("hello") would carry "o  ",
	// which "hello world" lacks; query with a subset of the entry's trigrams
	subset := trigram.Set{Trigrams: mapset.NewThreadUnsafeSet[string]("hel", "llo", "wor")}
	require.True(t, strat.Consistent(entry, subset))
	require.False(t, strat.Consistent(entry, "goodbye"))
}

func TestCompressedConsistentUsesSimilarityThreshold(t *testing.T) {
	strat := trigram.New(0.9)
	entry := trigram.FromText("hello world").CompressWithCap(2)
	require.True(t, entry.Compressed)
	// with only 2 trigrams kept out of many, similarity to the full text
	// is unlikely to clear a 0.9 threshold
	require.False(t, strat.Consistent(entry, "hello world"))
}

func TestUnionCoversAllMembers(t *testing.T) {
	strat := trigram.New(0.3)
	a := trigram.FromText("cat")
	b := trigram.FromText("cats")
	u := strat.Union([]trigram.Set{a, b})
	require.True(t, u.Contains(a))
	require.True(t, u.Contains(b))
}

func TestPickSplitHonorsMinimumFill(t *testing.T) {
	strat := trigram.New(0.3)
	sets := []trigram.Set{
		trigram.FromText("alpha"),
		trigram.FromText("beta"),
		trigram.FromText("gamma"),
		trigram.FromText("delta"),
	}
	g1, g2 := strat.PickSplit(sets)
	require.GreaterOrEqual(t, len(g1), 1)
	require.GreaterOrEqual(t, len(g2), 1)
	require.Equal(t, len(sets), len(g1)+len(g2))
}

// TestTrigramIndexFindsSubstringMatches exercises the strategy end to end
// through the generic gist.Index, the shape spec.md §4.5 describes for
// text-similarity search.
func TestTrigramIndexFindsSubstringMatches(t *testing.T) {
	strat := trigram.New(0.3)
	ix := gist.New[trigram.Set, int]("t", strat, 8)

	words := []string{"banana", "bandana", "orange", "grape"}
	for i, w := range words {
		ix.Insert(trigram.FromText(w), i)
	}

	// an unpadded trigram query; the string "ban" would be padded and carry
	// edge trigrams such as "an " that neither "banana" nor "bandana" has
	got := ix.Search(trigram.Set{Trigrams: mapset.NewThreadUnsafeSet[string]("ban")})
	require.Subset(t, []int{0, 1}, got)
	require.NotEmpty(t, got)
}
