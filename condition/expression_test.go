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

func TestExpressionEvaluatesBooleanResult(t *testing.T) {
	expr, err := condition.NewExpression("price > 100.0 && in_stock", []string{"price", "in_stock"})
	require.NoError(t, err)

	require.True(t, expr.Evaluate(condition.Row{"price": 150.0, "in_stock": true}))
	require.False(t, expr.Evaluate(condition.Row{"price": 50.0, "in_stock": true}))
}

func TestExpressionMissingColumnIsFalse(t *testing.T) {
	expr, err := condition.NewExpression("price > 100.0", []string{"price"})
	require.NoError(t, err)
	require.False(t, expr.Evaluate(condition.Row{"other": 1}))
}

func TestExpressionNonBooleanResultIsFalse(t *testing.T) {
	expr, err := condition.NewExpression("price + 1.0", []string{"price"})
	require.NoError(t, err)
	require.False(t, expr.Evaluate(condition.Row{"price": 10.0}))
}

func TestExpressionRejectsInvalidSyntax(t *testing.T) {
	_, err := condition.NewExpression("price >", []string{"price"})
	require.Error(t, err)
}
