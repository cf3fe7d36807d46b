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

package triggers

import (
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// cooldownLedger replaces the Python original's two plain dicts
// (_last_check and _last_optimization, both keyed by (index_name,
// trigger_type)) with an ordered generic tree, consistent with how the
// rest of this module favors ordered containers over maps for anything
// keyed by a composite or time-varying key.
type cooldownLedger struct {
	mu      sync.Mutex
	checks  *btree.BTreeG[checkEntry]
	optimum *btree.BTreeG[optimizeEntry]
}

type checkEntry struct {
	indexName string
	trigger   Type
	last      time.Time
}

func checkLess(a, b checkEntry) bool {
	if a.indexName != b.indexName {
		return a.indexName < b.indexName
	}
	return a.trigger < b.trigger
}

type optimizeEntry struct {
	indexName string
	trigger   Type
	last      time.Time
}

func optimizeLess(a, b optimizeEntry) bool {
	if a.indexName != b.indexName {
		return a.indexName < b.indexName
	}
	return a.trigger < b.trigger
}

func newCooldownLedger() *cooldownLedger {
	return &cooldownLedger{
		checks:  btree.NewBTreeG(checkLess),
		optimum: btree.NewBTreeG(optimizeLess),
	}
}

// shouldCheck mirrors _should_check_trigger: true when no prior check
// is recorded, or the check interval has elapsed since the last one.
func (c *cooldownLedger) shouldCheck(indexName string, t Type, now time.Time, interval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.checks.Get(checkEntry{indexName: indexName, trigger: t})
	if !ok {
		return true
	}
	return now.Sub(entry.last) >= interval
}

func (c *cooldownLedger) recordCheck(indexName string, t Type, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks.Set(checkEntry{indexName: indexName, trigger: t, last: now})
}

// canOptimize mirrors _can_optimize: the per-(index, trigger-type)
// cooldown, so an action for one trigger type never suppresses an
// independently-due action for another trigger type on the same index.
func (c *cooldownLedger) canOptimize(indexName string, t Type, now time.Time, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.optimum.Get(optimizeEntry{indexName: indexName, trigger: t})
	if !ok {
		return true
	}
	return now.Sub(entry.last) >= cooldown
}

func (c *cooldownLedger) recordOptimization(indexName string, t Type, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optimum.Set(optimizeEntry{indexName: indexName, trigger: t, last: now})
}
