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

// Package geometry holds the N-dimensional primitives shared by the R-tree
// and GiST spatial strategies: points, axis-aligned bounding boxes and
// simple polygons, plus the metric operations the index structures need.
package geometry

import "math"

// Point is an N-dimensional coordinate. All dimensions must agree across
// operands of any operation in this package; mismatched dimensions panic,
// since that is always a caller bug, not a runtime condition to recover
// from.
type Point []float64

func (p Point) dims() int { return len(p) }

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	if len(p) != len(q) {
		panic("geometry: mismatched point dimensions")
	}
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// BoundingBox is an axis-aligned box described by its lower and upper
// corners, inclusive on both ends.
type BoundingBox struct {
	Min Point
	Max Point
}

// NewBoundingBox builds a box from two opposite corners, normalizing
// min/max per dimension.
func NewBoundingBox(a, b Point) BoundingBox {
	if len(a) != len(b) {
		panic("geometry: mismatched point dimensions")
	}
	min := make(Point, len(a))
	max := make(Point, len(a))
	for i := range a {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return BoundingBox{Min: min, Max: max}
}

// EmptyBoundingBox returns the identity value for Union: an empty box
// with no dimensions yet fixed. The dimension argument exists only for
// call-site clarity; Union treats any zero-Dims box as the other operand.
func EmptyBoundingBox(dimension int) BoundingBox {
	return BoundingBox{}
}

// Dims reports the dimensionality of the box.
func (b BoundingBox) Dims() int { return len(b.Min) }

// Contains reports whether p lies within b, inclusive of the boundary.
func (b BoundingBox) Contains(p Point) bool {
	for i := range b.Min {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether b and o share at least one point.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	for i := range b.Min {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Union returns the minimal bounding box covering both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if b.Dims() == 0 {
		return o
	}
	if o.Dims() == 0 {
		return b
	}
	min := make(Point, len(b.Min))
	max := make(Point, len(b.Max))
	for i := range b.Min {
		min[i] = math.Min(b.Min[i], o.Min[i])
		max[i] = math.Max(b.Max[i], o.Max[i])
	}
	return BoundingBox{Min: min, Max: max}
}

// Area returns the hyper-volume of the box (product of side lengths).
func (b BoundingBox) Area() float64 {
	area := 1.0
	for i := range b.Min {
		area *= b.Max[i] - b.Min[i]
	}
	return area
}

// Margin returns the sum of side lengths — used by the R* split's
// margin-minimizing axis selection, which is cheaper to evaluate than area
// for thin boxes.
func (b BoundingBox) Margin() float64 {
	var m float64
	for i := range b.Min {
		m += b.Max[i] - b.Min[i]
	}
	return m
}

// EnlargementArea returns how much b's area would grow to also cover o.
func (b BoundingBox) EnlargementArea(o BoundingBox) float64 {
	return b.Union(o).Area() - b.Area()
}

// OverlapArea returns the area shared between b and o (zero if disjoint).
func (b BoundingBox) OverlapArea(o BoundingBox) float64 {
	area := 1.0
	for i := range b.Min {
		lo := math.Max(b.Min[i], o.Min[i])
		hi := math.Min(b.Max[i], o.Max[i])
		if hi <= lo {
			return 0
		}
		area *= hi - lo
	}
	return area
}

// Center returns the box's geometric center, used for distance-ordered
// (kNN) search.
func (b BoundingBox) Center() Point {
	c := make(Point, len(b.Min))
	for i := range b.Min {
		c[i] = (b.Min[i] + b.Max[i]) / 2
	}
	return c
}

// DistanceToPoint returns the minimum distance from p to the box — zero if
// p is inside. This is the lower bound used by the R-tree's best-first kNN
// search: a subtree can never contain a closer match than this value.
func (b BoundingBox) DistanceToPoint(p Point) float64 {
	var sum float64
	for i := range b.Min {
		var d float64
		switch {
		case p[i] < b.Min[i]:
			d = b.Min[i] - p[i]
		case p[i] > b.Max[i]:
			d = p[i] - b.Max[i]
		default:
			d = 0
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Polygon is a simple (non-self-intersecting) closed ring of vertices in
// two dimensions. It is used only to compute the minimal bounding box a
// caller would register in the R-tree; the core does not itself do
// point-in-polygon refinement (§4.4: "no false positives" is a bbox-level
// guarantee, exact polygon containment is the caller's concern).
type Polygon struct {
	Vertices []Point
}

// BoundingBox returns the minimal axis-aligned box enclosing the polygon.
func (p Polygon) BoundingBox() BoundingBox {
	if len(p.Vertices) == 0 {
		return BoundingBox{}
	}
	min := append(Point(nil), p.Vertices[0]...)
	max := append(Point(nil), p.Vertices[0]...)
	for _, v := range p.Vertices[1:] {
		for i := range v {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return BoundingBox{Min: min, Max: max}
}
