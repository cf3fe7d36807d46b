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

package hashindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/index/hashindex"
	"github.com/datapunk/indexengine/indexerr"
)

type strKey string

func (k strKey) Hash() uint64 {
	// FNV-1a, small and dependency-free; collisions are expected and
	// handled by Equal, not avoided.
	var h uint64 = 14695981039346656037
	for i := 0; i < len(k); i++ {
		h ^= uint64(k[i])
		h *= 1099511628211
	}
	return h
}

func (k strKey) Equal(other strKey) bool { return k == other }

func TestHashIndexRejectsRange(t *testing.T) {
	ix := hashindex.New[strKey]("t", false)
	require.NoError(t, ix.Insert("a", 1))
	_, err := ix.Range("a", "z")
	require.Error(t, err)
	require.True(t, indexerr.Is(err, indexerr.KindUnsupported))
}

func TestHashIndexSearchAfterCollision(t *testing.T) {
	ix := hashindex.New[strKey]("t", false)
	require.NoError(t, ix.Insert("a", 1))
	require.NoError(t, ix.Insert("a", 2))
	require.NoError(t, ix.Insert("b", 3))

	got := ix.Search("a")
	require.ElementsMatch(t, []index.Rid{1, 2}, got)

	got = ix.Search("b")
	require.ElementsMatch(t, []index.Rid{3}, got)

	got = ix.Search("missing")
	require.Empty(t, got)
}

func TestHashIndexDeleteExactPair(t *testing.T) {
	ix := hashindex.New[strKey]("t", false)
	require.NoError(t, ix.Insert("a", 1))
	require.NoError(t, ix.Insert("a", 2))

	require.True(t, ix.Delete("a", 1))
	require.False(t, ix.Delete("a", 1)) // already gone

	require.ElementsMatch(t, []index.Rid{2}, ix.Search("a"))
}

func TestHashIndexUniqueRejectsDuplicateKey(t *testing.T) {
	ix := hashindex.New[strKey]("t", true)
	require.NoError(t, ix.Insert("a", 1))
	err := ix.Insert("a", 2)
	require.Error(t, err)
	require.True(t, indexerr.Is(err, indexerr.KindUniquenessViolation))

	// re-inserting the exact same pair is idempotent even on a unique index
	require.NoError(t, ix.Insert("a", 1))
}

func TestHashIndexDuplicatePairIdempotent(t *testing.T) {
	ix := hashindex.New[strKey]("t", false)
	require.NoError(t, ix.Insert("a", 1))
	require.NoError(t, ix.Insert("a", 1))
	require.Len(t, ix.Search("a"), 1)
}

func TestHashIndexStatistics(t *testing.T) {
	ix := hashindex.New[strKey]("t", false)
	require.NoError(t, ix.Insert("a", 1))
	require.NoError(t, ix.Insert("a", 2))
	require.NoError(t, ix.Insert("b", 3))

	stats := ix.Statistics()
	require.Equal(t, 3, stats.TotalEntries)
	require.Equal(t, 2, stats.UniqueKeys)
	require.Equal(t, 2, stats.MaxChainLength)
}
