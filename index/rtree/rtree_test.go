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

package rtree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/geometry"
	"github.com/datapunk/indexengine/index/rtree"
)

func box(x0, y0, x1, y1 float64) geometry.BoundingBox {
	return geometry.NewBoundingBox(geometry.Point{x0, y0}, geometry.Point{x1, y1})
}

// TestRTreeWindowNoFalseNegatives is spec.md §8's R-tree window guarantee:
// any point inserted at bbox B is returned by search(W) whenever B ∩ W != ∅.
func TestRTreeWindowNoFalseNegatives(t *testing.T) {
	ix := rtree.New[int]("t", 4, 2)
	for i := 0; i < 200; i++ {
		x := float64(i % 20)
		y := float64(i / 20)
		ix.Insert(box(x, y, x+1, y+1), i)
	}

	window := box(5, 5, 8, 8)
	got := ix.Search(window)

	expected := map[int]bool{}
	for i := 0; i < 200; i++ {
		x := float64(i % 20)
		y := float64(i / 20)
		if box(x, y, x+1, y+1).Intersects(window) {
			expected[i] = true
		}
	}
	require.Len(t, got, len(expected))
	for _, v := range got {
		require.True(t, expected[v])
	}
}

func TestRTreeNearestReturnsKClosest(t *testing.T) {
	ix := rtree.New[string]("t", 4, 2)
	ix.Insert(box(0, 0, 0, 0), "origin")
	ix.Insert(box(10, 10, 10, 10), "far")
	ix.Insert(box(1, 1, 1, 1), "near")

	got := ix.Nearest(geometry.Point{0, 0}, 2)
	require.Len(t, got, 2)
	require.Equal(t, "origin", got[0].Value)
	require.Equal(t, "near", got[1].Value)
}

func TestRTreeStatsDepthGrowsWithInserts(t *testing.T) {
	ix := rtree.New[int]("t", 4, 2)
	shallow := ix.Statistics().Depth
	for i := 0; i < 500; i++ {
		x := float64(i)
		ix.Insert(box(x, x, x+1, x+1), i)
	}
	deep := ix.Statistics().Depth
	require.Greater(t, deep, shallow)
	require.Equal(t, 500, ix.Statistics().TotalEntries)
}
