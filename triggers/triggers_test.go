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

package triggers_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/stats"
	"github.com/datapunk/indexengine/triggers"
)

type recordingActions struct {
	rebuilt   []string
	analyzed  []string
	cacheOpt  []string
	compacted []string
	condOpt   []string
	failNext  bool
}

func (r *recordingActions) RebuildIndex(ctx context.Context, name string) error {
	r.rebuilt = append(r.rebuilt, name)
	return nil
}
func (r *recordingActions) AnalyzeIndex(ctx context.Context, name string) error {
	r.analyzed = append(r.analyzed, name)
	return nil
}
func (r *recordingActions) OptimizeCache(ctx context.Context, name string) error {
	r.cacheOpt = append(r.cacheOpt, name)
	return nil
}
func (r *recordingActions) CompactIndex(ctx context.Context, name string) error {
	r.compacted = append(r.compacted, name)
	return nil
}
func (r *recordingActions) OptimizeCondition(ctx context.Context, name string) error {
	if r.failNext {
		return context.DeadlineExceeded
	}
	r.condOpt = append(r.condOpt, name)
	return nil
}

func openStore(t *testing.T) *stats.Store {
	t.Helper()
	st, err := stats.Open(filepath.Join(t.TempDir(), "s.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCheckTriggersFiresOnFragmentation(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Size: stats.Size{FragmentationRatio: 0.5},
	}))

	engine := triggers.NewEngine(st, nil, &recordingActions{}, triggers.DefaultConfig(), nil)
	events, err := engine.CheckTriggers(ctx, "ix")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, triggers.Fragmentation, events[0].Type)
}

func TestCheckTriggersNoEventsWhenHealthy(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Size:  stats.Size{FragmentationRatio: 0.01},
		Usage: stats.Usage{AvgReadTimeMs: 1, AvgWriteTimeMs: 1},
	}))

	engine := triggers.NewEngine(st, nil, &recordingActions{}, triggers.DefaultConfig(), nil)
	events, err := engine.CheckTriggers(ctx, "ix")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestCheckTriggersUnknownIndexReturnsNoEvents(t *testing.T) {
	st := openStore(t)
	engine := triggers.NewEngine(st, nil, &recordingActions{}, triggers.DefaultConfig(), nil)
	events, err := engine.CheckTriggers(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestExecuteOptimizationsDispatchesRebuildOnFragmentation(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Size: stats.Size{FragmentationRatio: 0.9},
	}))

	actions := &recordingActions{}
	engine := triggers.NewEngine(st, nil, actions, triggers.DefaultConfig(), nil)
	ok, errs := engine.ExecuteOptimizations(ctx, "ix")
	require.True(t, ok)
	require.Empty(t, errs)
	require.Equal(t, []string{"ix"}, actions.rebuilt)
}

func TestExecuteOptimizationsRespectsCooldown(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Size: stats.Size{FragmentationRatio: 0.9},
	}))

	actions := &recordingActions{}
	engine := triggers.NewEngine(st, nil, actions, triggers.DefaultConfig(), nil)

	ok, _ := engine.ExecuteOptimizations(ctx, "ix")
	require.True(t, ok)

	ok, errs := engine.ExecuteOptimizations(ctx, "ix")
	require.False(t, ok)
	require.Empty(t, errs)
	require.Len(t, actions.rebuilt, 1)
}

func TestExecuteOptimizationsCooldownIsPerTriggerType(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Size: stats.Size{FragmentationRatio: 0.9},
	}))

	actions := &recordingActions{}
	engine := triggers.NewEngine(st, nil, actions, triggers.DefaultConfig(), nil)

	ok, _ := engine.ExecuteOptimizations(ctx, "ix")
	require.True(t, ok)
	require.Equal(t, []string{"ix"}, actions.rebuilt)

	// A later record that also crosses the cache threshold must still
	// fire OptimizeCache: the fragmentation action's cooldown is scoped
	// to the fragmentation trigger only.
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Size:  stats.Size{FragmentationRatio: 0.9},
		Usage: stats.Usage{CacheHits: 1, CacheMisses: 999},
	}))
	ok, errs := engine.ExecuteOptimizations(ctx, "ix")
	require.True(t, ok)
	require.Empty(t, errs)
	require.Equal(t, []string{"ix"}, actions.cacheOpt)
	// Fragmentation did not fire again: still cooling down from the first call.
	require.Equal(t, []string{"ix"}, actions.rebuilt)
}

func TestExecuteOptimizationsCollectsActionFailure(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, stats.Record{
		IndexName: "ix", TableName: "t", IndexKind: "hash",
		CreatedAt: time.Now(), Timestamp: time.Now(),
		Condition: &stats.Condition{FalsePositiveRate: 0.9},
	}))

	actions := &recordingActions{failNext: true}
	engine := triggers.NewEngine(st, nil, actions, triggers.DefaultConfig(), nil)
	ok, errs := engine.ExecuteOptimizations(ctx, "ix")
	require.False(t, ok)
	require.Len(t, errs, 1)
}
