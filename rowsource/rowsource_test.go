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

package rowsource_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/condition"
	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/rowsource"
)

func TestSliceSourceIteratesThenExhausts(t *testing.T) {
	src := rowsource.NewSliceSource([]rowsource.Entry[string, index.Rid]{
		{Key: "a", Value: 1, Row: condition.Row{"country": "us"}},
		{Key: "b", Value: 2, Row: condition.Row{"country": "uk"}},
	})

	ctx := context.Background()
	e1, ok, err := src.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", e1.Key)

	e2, ok, err := src.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", e2.Key)

	_, ok, err = src.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSliceSourceHonorsCancellation(t *testing.T) {
	src := rowsource.NewSliceSource([]rowsource.Entry[string, index.Rid]{
		{Key: "a", Value: 1},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := src.Next(ctx)
	require.Error(t, err)
	require.False(t, ok)
}
