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

package storageadapter_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/storageadapter"
)

func TestMemoryAdapterExportMissingReturnsFalse(t *testing.T) {
	a := storageadapter.NewMemoryAdapter()
	_, ok, err := a.Export("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryAdapterRoundTrip(t *testing.T) {
	a := storageadapter.NewMemoryAdapter()
	payload := storageadapter.Payload{IndexName: "ix", Kind: "btree", Data: map[string]any{"entries": int64(3)}}

	ok, err := a.Import("ix", payload)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := a.Export("ix")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)
}

func TestFileAdapterRoundTrip(t *testing.T) {
	a, err := storageadapter.NewFileAdapter(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	payload := storageadapter.Payload{
		IndexName: "ix",
		Kind:      "composite",
		Data:      map[string]any{"entries": int64(42), "fragmentation": 0.1, "columns": []string{"a", "b"}},
	}

	ok, err := a.Import("ix", payload)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := a.Export("ix")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload.IndexName, got.IndexName)
	require.Equal(t, payload.Kind, got.Kind)
	require.Equal(t, int64(42), got.Data["entries"])
}

func TestFileAdapterExportMissingReturnsFalse(t *testing.T) {
	a, err := storageadapter.NewFileAdapter(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	_, ok, err := a.Export("missing")
	require.NoError(t, err)
	require.False(t, ok)
}
