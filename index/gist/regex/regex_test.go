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

package regex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/index/gist"
	"github.com/datapunk/indexengine/index/gist/regex"
)

func TestMatchesRejectsOnLengthBeforeRegex(t *testing.T) {
	p := regex.FromRegex("^abc$", true)
	require.False(t, p.Matches("a")) // too short, never reaches the regex engine
	require.True(t, p.Matches("abc"))
}

func TestMatchesRespectsCaseSensitivity(t *testing.T) {
	p := regex.FromRegex("^hello$", false)
	require.True(t, p.Matches("HELLO"))

	p2 := regex.FromRegex("^hello$", true)
	require.False(t, p2.Matches("HELLO"))
}

func TestUnionProducesAlternation(t *testing.T) {
	strat := regex.New(100)
	a := regex.FromRegex("cat", true)
	b := regex.FromRegex("dog", true)
	u := strat.Union([]regex.Pattern{a, b})
	require.Contains(t, u.Source, "cat")
	require.Contains(t, u.Source, "dog")
}

func TestCompressDropsMaxLengthBound(t *testing.T) {
	strat := regex.New(5)
	p := regex.FromRegex("abcdefghij", true)
	require.NotEqual(t, -1, p.MaxLength)

	compressed := strat.Compress(p)
	require.Equal(t, -1, compressed.MaxLength)
	require.NotEqual(t, p.Source, compressed.Source)
}

func TestRegexIndexFindsPrefixedEntries(t *testing.T) {
	strat := regex.New(100)
	ix := gist.New[regex.Pattern, int]("t", strat, 8)

	// the index stores pattern entries for known strings, each "entry"
	// predicate accepting exactly that string, as a proxy for indexing
	// literal text under the regex strategy
	words := []string{"apple123", "banana456", "apricot789"}
	for i, w := range words {
		ix.Insert(regex.FromRegex(w, true), i)
	}

	got := ix.Search("apple123")
	require.Equal(t, []int{0}, got)
}
