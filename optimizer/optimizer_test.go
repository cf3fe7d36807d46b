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

package optimizer_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/condition"
	"github.com/datapunk/indexengine/optimizer"
	"github.com/datapunk/indexengine/stats"
)

type recorder struct {
	table   string
	columns []string
	isRange bool
	calls   int
}

func (r *recorder) RecordQueryPattern(table string, columns []string, isRangeScan bool) {
	r.table, r.columns, r.isRange = table, columns, isRangeScan
	r.calls++
}

func openStore(t *testing.T) *stats.Store {
	t.Helper()
	st, err := stats.Open(filepath.Join(t.TempDir(), "o.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPlanReturnsNilWhenNoCandidateCovers(t *testing.T) {
	st := openStore(t)
	cond := condition.NewSimple("email", condition.OpEq, "a@b.com")
	path, err := optimizer.Plan(context.Background(), st, nil, "users",
		[]optimizer.Candidate{{Name: "by_name", Columns: []string{"name"}}}, cond, nil)
	require.NoError(t, err)
	require.Nil(t, path)
}

func TestPlanPicksLowestCostCandidate(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "slow_ix", TableName: "users", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Usage: stats.Usage{AvgReadTimeMs: 50},
	}))
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "fast_ix", TableName: "users", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Usage: stats.Usage{AvgReadTimeMs: 1},
	}))

	cond := condition.NewSimple("email", condition.OpEq, "a@b.com")
	candidates := []optimizer.Candidate{
		{Name: "slow_ix", Columns: []string{"email"}},
		{Name: "fast_ix", Columns: []string{"email"}},
	}

	path, err := optimizer.Plan(ctx, st, nil, "users", candidates, cond, nil)
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Equal(t, "fast_ix", path.IndexName)
}

func TestPlanPenalizesFragmentation(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "frag_ix", TableName: "users", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Usage: stats.Usage{AvgReadTimeMs: 10}, Size: stats.Size{FragmentationRatio: 0.5},
	}))
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "clean_ix", TableName: "users", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Usage: stats.Usage{AvgReadTimeMs: 10}, Size: stats.Size{FragmentationRatio: 0.01},
	}))

	cond := condition.NewSimple("email", condition.OpEq, "a@b.com")
	candidates := []optimizer.Candidate{
		{Name: "frag_ix", Columns: []string{"email"}},
		{Name: "clean_ix", Columns: []string{"email"}},
	}

	path, err := optimizer.Plan(ctx, st, nil, "users", candidates, cond, nil)
	require.NoError(t, err)
	require.Equal(t, "clean_ix", path.IndexName)
}

func TestPlanRewardsOrderingSupport(t *testing.T) {
	st := openStore(t)
	cond := condition.NewSimple("status", condition.OpEq, "active")
	candidates := []optimizer.Candidate{
		{Name: "no_order", Columns: []string{"status"}},
		{Name: "with_order", Columns: []string{"status", "created_at"}},
	}

	path, err := optimizer.Plan(context.Background(), st, nil, "orders", candidates, cond, []string{"created_at"})
	require.NoError(t, err)
	require.Equal(t, "with_order", path.IndexName)
	require.True(t, path.SupportsOrdering)
}

func TestPlanRecordsUsageForAdvisor(t *testing.T) {
	st := openStore(t)
	cond := condition.NewSimple("status", condition.OpEq, "active")
	candidates := []optimizer.Candidate{{Name: "ix", Columns: []string{"status"}}}

	rec := &recorder{}
	_, err := optimizer.Plan(context.Background(), st, rec, "orders", candidates, cond, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rec.calls)
	require.Equal(t, "orders", rec.table)
}

func TestPlanDetectsRangeScan(t *testing.T) {
	st := openStore(t)
	cond := condition.NewSimple("age", condition.OpGt, 18)
	candidates := []optimizer.Candidate{{Name: "ix", Columns: []string{"age"}}}

	path, err := optimizer.Plan(context.Background(), st, nil, "users", candidates, cond, nil)
	require.NoError(t, err)
	require.True(t, path.IsRangeScan)
}
