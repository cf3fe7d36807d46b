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

package stats_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/stats"
)

func openTestStore(t *testing.T) *stats.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.db")
	st, err := stats.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreAppendAndLatest(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := stats.Record{
		IndexName: "orders_by_customer",
		TableName: "orders",
		IndexKind: "hash",
		CreatedAt: now,
		Timestamp: now,
		Usage:     stats.Usage{TotalReads: 10},
	}
	require.NoError(t, st.Append(ctx, rec))

	later := rec
	later.Timestamp = now.Add(time.Hour)
	later.Usage.TotalReads = 20
	require.NoError(t, st.Append(ctx, later))

	latest, ok, err := st.LatestByIndex(ctx, "orders_by_customer")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(20), latest.Usage.TotalReads)

	_, ok, err = st.LatestByIndex(ctx, "nonexistent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreHistoryOrdersByTimestamp(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := stats.Record{
			IndexName: "ix",
			TableName: "t",
			IndexKind: "hash",
			CreatedAt: base,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Usage:     stats.Usage{TotalReads: int64(i)},
		}
		require.NoError(t, st.Append(ctx, rec))
	}

	history, err := st.History(ctx, "ix", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, int64(0), history[0].Usage.TotalReads)
	require.Equal(t, int64(2), history[2].Usage.TotalReads)
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	saved, err := st.AppendSnapshot(ctx, stats.Snapshot{
		IndexName: "ix",
		Kind:      "size",
		Data:      map[string]any{"entries": float64(42)},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	snaps, err := st.Snapshots(ctx, "ix", "size", 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, float64(42), snaps[0].Data["entries"])
}

func TestStoreExpireRemovesOldRecords(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := stats.Record{IndexName: "ix", TableName: "t", IndexKind: "hash", CreatedAt: now, Timestamp: now.Add(-60 * 24 * time.Hour)}
	fresh := stats.Record{IndexName: "ix", TableName: "t", IndexKind: "hash", CreatedAt: now, Timestamp: now}
	require.NoError(t, st.Append(ctx, old))
	require.NoError(t, st.Append(ctx, fresh))

	require.NoError(t, st.Expire(ctx, now, 30))

	history, err := st.History(ctx, "ix", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 1)
}
