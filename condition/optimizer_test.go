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

package condition_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/condition"
)

func TestOptimizeDropsTautology(t *testing.T) {
	tautology := condition.NewSimple("col", condition.OpEq, "col")
	real := condition.NewSimple("status", condition.OpEq, "active")
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{tautology, real})
	require.NoError(t, err)

	optimized, counters := condition.Optimize(c)
	require.Equal(t, real.String(), optimized.String())
	require.Equal(t, 1, counters.RemovedRedundant)
}

func TestOptimizeFlattensNestedAnd(t *testing.T) {
	a := condition.NewSimple("a", condition.OpEq, 1)
	b := condition.NewSimple("b", condition.OpEq, 2)
	cc := condition.NewSimple("c", condition.OpEq, 3)

	inner, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{b, cc})
	require.NoError(t, err)
	outer, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{a, inner})
	require.NoError(t, err)

	optimized, _ := condition.Optimize(outer)
	comp, ok := optimized.(condition.Composite)
	require.True(t, ok)
	require.Len(t, comp.Children, 3)
}

func TestOptimizeDedupesIdenticalChildren(t *testing.T) {
	a := condition.NewSimple("x", condition.OpEq, 1)
	dup := condition.NewSimple("x", condition.OpEq, 1)
	other := condition.NewSimple("y", condition.OpEq, 2)
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{a, dup, other})
	require.NoError(t, err)

	optimized, counters := condition.Optimize(c)
	comp, ok := optimized.(condition.Composite)
	require.True(t, ok)
	require.Len(t, comp.Children, 2)
	require.Equal(t, 1, counters.RemovedRedundant)
}

func TestOptimizeCollapsesSingleChildComposite(t *testing.T) {
	only := condition.NewSimple("x", condition.OpEq, 1)
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{only})
	require.NoError(t, err)

	optimized, _ := condition.Optimize(c)
	_, isComposite := optimized.(condition.Composite)
	require.False(t, isComposite)
}

func TestOptimizeMergesRangeIntoBetween(t *testing.T) {
	lower := condition.NewSimple("age", condition.OpGe, 18)
	upper := condition.NewSimple("age", condition.OpLt, 65)
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{lower, upper})
	require.NoError(t, err)

	optimized, counters := condition.Optimize(c)
	simple, ok := optimized.(condition.Simple)
	require.True(t, ok)
	require.Equal(t, condition.OpBetween, simple.Op)
	require.Equal(t, 1, counters.MergedConditions)

	// boundary check: 65 was an exclusive upper bound, so it must no
	// longer match once folded into an inclusive BETWEEN.
	require.True(t, simple.Evaluate(condition.Row{"age": 64}))
	require.False(t, simple.Evaluate(condition.Row{"age": 65}))
}

func TestOptimizeMergesEqAndInToEq(t *testing.T) {
	eq := condition.NewSimple("status", condition.OpEq, "active")
	in := condition.NewSimple("status", condition.OpIn, []any{"active", "pending"})
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{eq, in})
	require.NoError(t, err)

	optimized, counters := condition.Optimize(c)
	simple, ok := optimized.(condition.Simple)
	require.True(t, ok)
	require.Equal(t, condition.OpEq, simple.Op)
	require.Equal(t, 1, counters.MergedConditions)
}

func TestOptimizeMergesEqNotInInFalsifiesParent(t *testing.T) {
	eq := condition.NewSimple("status", condition.OpEq, "deleted")
	in := condition.NewSimple("status", condition.OpIn, []any{"active", "pending"})
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{eq, in})
	require.NoError(t, err)

	optimized, _ := condition.Optimize(c)
	lit, ok := optimized.(condition.Literal)
	require.True(t, ok)
	require.False(t, bool(lit))
}

func TestOptimizeReordersBySelectivity(t *testing.T) {
	expensive := condition.NewSimple("name", condition.OpLike, "%a%")
	cheap := condition.NewSimple("id", condition.OpEq, 42)
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{expensive, cheap})
	require.NoError(t, err)

	optimized, _ := condition.Optimize(c)
	comp, ok := optimized.(condition.Composite)
	require.True(t, ok)
	require.Equal(t, "id", comp.Children[0].(condition.Simple).Column)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	a := condition.NewSimple("a", condition.OpEq, 1)
	b := condition.NewSimple("b", condition.OpGt, 10)
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{a, b})
	require.NoError(t, err)

	once, _ := condition.Optimize(c)
	twice, secondPass := condition.Optimize(once)
	require.Equal(t, once.String(), twice.String())
	require.Equal(t, 0, secondPass.RemovedRedundant)
	require.Equal(t, 0, secondPass.MergedConditions)
}

func TestOptimizeSimplifiesSingleComparisonExpression(t *testing.T) {
	expr, err := condition.NewExpression("age > 18", []string{"age"})
	require.NoError(t, err)

	optimized, counters := condition.Optimize(expr)
	simple, ok := optimized.(condition.Simple)
	require.True(t, ok)
	require.Equal(t, condition.OpGt, simple.Op)
	require.Equal(t, 1, counters.SimplifiedExpressions)
}

func TestOptimizeWithBreadthSkipsMergeAboveCap(t *testing.T) {
	a := condition.NewSimple("age", condition.OpGt, 18)
	b := condition.NewSimple("age", condition.OpLt, 65)
	c, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{a, b})
	require.NoError(t, err)

	_, belowCap := condition.OptimizeWithBreadth(c, 2)
	require.Equal(t, 1, belowCap.MergedConditions)

	_, aboveCap := condition.OptimizeWithBreadth(c, 1)
	require.Equal(t, 0, aboveCap.MergedConditions)
}
