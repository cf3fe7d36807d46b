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

package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/manager"
	"github.com/datapunk/indexengine/storageadapter"
)

type exportableIndex struct {
	name string
	data map[string]any
}

func (e *exportableIndex) Name() string     { return e.name }
func (e *exportableIndex) Kind() index.Kind { return index.KindBTree }
func (e *exportableIndex) Metadata() index.Metadata {
	return index.Metadata{Name: e.name, Kind: index.KindBTree, Table: "orders", CreatedAt: time.Now()}
}
func (e *exportableIndex) Len() int { return len(e.data) }
func (e *exportableIndex) Export() (map[string]any, error) {
	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out, nil
}
func (e *exportableIndex) Import(data map[string]any) error {
	e.data = data
	return nil
}

func TestExportIndexThenImportIndexRoundTrips(t *testing.T) {
	m, _ := newManager(t)
	src := &exportableIndex{name: "src", data: map[string]any{"k": int64(1)}}
	dst := &exportableIndex{name: "dst", data: map[string]any{}}
	require.NoError(t, m.CreateIndex(context.Background(), "orders", src))
	require.NoError(t, m.CreateIndex(context.Background(), "orders", dst))

	adapter := storageadapter.NewMemoryAdapter()
	require.NoError(t, m.ExportIndex(adapter, "src"))

	payload, ok, err := adapter.Export("src")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, adapter.Import("dst", payload))

	ok, err = m.ImportIndex(adapter, "dst")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), dst.data["k"])
}

func TestExportIndexRejectsUnsupportedIndex(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.CreateIndex(context.Background(), "orders", &fakeIndex{name: "ix", kind: index.KindHash}))

	err := m.ExportIndex(storageadapter.NewMemoryAdapter(), "ix")
	require.Error(t, err)
}

func TestImportIndexMissingAdapterEntryReturnsFalse(t *testing.T) {
	m, _ := newManager(t)
	dst := &exportableIndex{name: "dst", data: map[string]any{}}
	require.NoError(t, m.CreateIndex(context.Background(), "orders", dst))

	ok, err := m.ImportIndex(storageadapter.NewMemoryAdapter(), "dst")
	require.NoError(t, err)
	require.False(t, ok)
}
