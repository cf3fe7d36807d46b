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

package bitmap_test

import (
	"sort"
	"testing"

	roaringlib "github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/index/bitmap"
	"github.com/datapunk/indexengine/indexerr"
)

type strVal string

func (v strVal) Compare(other strVal) int {
	switch {
	case v < other:
		return -1
	case v > other:
		return 1
	default:
		return 0
	}
}

var allEncodings = []bitmap.Encoding{bitmap.Uncompressed, bitmap.WAH, bitmap.CONCISE, bitmap.Roaring}

// TestBitmapEncodingsAgree is spec.md §8 scenario 3: rids {0,1,3,4,5,7} of
// value "A" under all four encodings return the same search(op="=") result.
func TestBitmapEncodingsAgree(t *testing.T) {
	rids := []index.Rid{0, 1, 3, 4, 5, 7}
	for _, enc := range allEncodings {
		ix := bitmap.New[strVal]("t", enc, 0)
		for _, r := range rids {
			require.NoError(t, ix.Insert("A", r))
		}
		got := ix.Search("A")
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Equal(t, rids, got, "encoding %s", enc)
	}
}

func TestBitmapCardinalityGuard(t *testing.T) {
	ix := bitmap.New[strVal]("t", bitmap.Uncompressed, 2)
	require.NoError(t, ix.Insert("A", 0))
	require.NoError(t, ix.Insert("B", 1))
	err := ix.Insert("C", 2)
	require.Error(t, err)
	require.True(t, indexerr.Is(err, indexerr.KindCardinalityExceeded))

	// existing values stay insertable once the guard is hit
	require.NoError(t, ix.Insert("A", 3))
}

func TestBitmapDeleteDefersToRebuild(t *testing.T) {
	ix := bitmap.New[strVal]("t", bitmap.Roaring, 0)
	require.NoError(t, ix.Insert("A", 1))
	require.NoError(t, ix.Insert("A", 2))

	ix.Delete("A", 1)
	require.ElementsMatch(t, []index.Rid{2}, ix.Search("A"))

	require.NoError(t, ix.Rebuild())
	require.ElementsMatch(t, []index.Rid{2}, ix.Search("A"))
}

func TestBitmapRangeOrsAcrossValues(t *testing.T) {
	ix := bitmap.New[strVal]("t", bitmap.WAH, 0)
	require.NoError(t, ix.Insert("A", 0))
	require.NoError(t, ix.Insert("B", 1))
	require.NoError(t, ix.Insert("C", 2))

	got, err := ix.Range("A", "B")
	require.NoError(t, err)
	require.ElementsMatch(t, []index.Rid{0, 1}, got)
}

// TestBitmapRoundTrip checks, for an index configured with each encoding,
// that Search returns exactly the randomly generated row-id set that was
// inserted. Search reads the live roaring bitmap, so this test does not
// call any codec's Encode or Decode.
func TestBitmapRoundTrip(t *testing.T) {
	for _, enc := range allEncodings {
		enc := enc
		t.Run(enc.String(), func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				values := rapid.SliceOfDistinct(rapid.Uint32Range(0, 5000), func(v uint32) uint32 { return v }).Draw(rt, "rids")

				ix := bitmap.New[strVal]("t", enc, 0)
				for _, v := range values {
					require.NoError(rt, ix.Insert("A", index.Rid(v)))
				}

				got := ix.Search("A")
				sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
				sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
				require.Len(rt, got, len(values))
				for i, v := range values {
					require.Equal(rt, index.Rid(v), got[i])
				}
			})
		})
	}
}

func TestBitmapEncodedSizeNonZero(t *testing.T) {
	for _, enc := range allEncodings {
		ix := bitmap.New[strVal]("t", enc, 0)
		for i := index.Rid(0); i < 100; i++ {
			require.NoError(t, ix.Insert("A", i))
		}
		require.Greater(t, ix.EncodedSize(), 0, "encoding %s", enc)
	}
}

// sanity check that the roaring library itself is wired, not just referenced
// by type in Encode/Decode signatures.
func TestRoaringLibraryLinked(t *testing.T) {
	b := roaringlib.New()
	b.Add(5)
	require.True(t, b.Contains(5))
}
