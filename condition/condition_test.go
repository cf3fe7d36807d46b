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

func TestSimpleEqMissingColumnIsFalse(t *testing.T) {
	c := condition.NewSimple("country", condition.OpEq, "us")
	require.False(t, c.Evaluate(condition.Row{"other": "x"}))
}

func TestSimpleOperators(t *testing.T) {
	row := condition.Row{"age": int64(30), "name": "alice", "deleted": nil}

	require.True(t, condition.NewSimple("age", condition.OpGe, 18).Evaluate(row))
	require.False(t, condition.NewSimple("age", condition.OpLt, 18).Evaluate(row))
	require.True(t, condition.NewSimple("name", condition.OpEq, "alice").Evaluate(row))
	require.True(t, condition.NewSimple("age", condition.OpBetween, []any{20, 40}).Evaluate(row))
	require.True(t, condition.NewSimple("deleted", condition.OpIsNull, nil).Evaluate(row))
	require.False(t, condition.NewSimple("age", condition.OpIsNull, nil).Evaluate(row))
}

func TestSimpleInAndNotIn(t *testing.T) {
	row := condition.Row{"country": "uk"}
	require.True(t, condition.NewSimple("country", condition.OpIn, []any{"us", "uk"}).Evaluate(row))
	require.False(t, condition.NewSimple("country", condition.OpNotIn, []any{"us", "uk"}).Evaluate(row))
}

func TestSimpleLike(t *testing.T) {
	row := condition.Row{"email": "alice@example.com"}
	require.True(t, condition.NewSimple("email", condition.OpLike, "%@example.com").Evaluate(row))
	require.False(t, condition.NewSimple("email", condition.OpLike, "%@other.com").Evaluate(row))
}

func TestSimpleOperatorTypeMismatchIsFalseNotPanic(t *testing.T) {
	row := condition.Row{"age": "not-a-number"}
	require.NotPanics(t, func() {
		require.False(t, condition.NewSimple("age", condition.OpGt, 18).Evaluate(row))
	})
}

func TestCompositeRequiresNonEmptyChildren(t *testing.T) {
	_, err := condition.NewComposite(condition.LogicAnd, nil)
	require.Error(t, err)
}

func TestCompositeAndOr(t *testing.T) {
	a := condition.NewSimple("x", condition.OpEq, 1)
	b := condition.NewSimple("y", condition.OpEq, 2)

	and, err := condition.NewComposite(condition.LogicAnd, []condition.Condition{a, b})
	require.NoError(t, err)
	require.True(t, and.Evaluate(condition.Row{"x": 1, "y": 2}))
	require.False(t, and.Evaluate(condition.Row{"x": 1, "y": 3}))

	or, err := condition.NewComposite(condition.LogicOr, []condition.Condition{a, b})
	require.NoError(t, err)
	require.True(t, or.Evaluate(condition.Row{"x": 1, "y": 3}))
	require.False(t, or.Evaluate(condition.Row{"x": 9, "y": 9}))
}
