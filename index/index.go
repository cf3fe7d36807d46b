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

// Package index defines the shared vocabulary of the concrete index
// structures (btree, hashindex, bitmap, rtree, gist, composite, partial):
// row identifiers, the index-kind tag, the lifecycle state machine, and the
// Capability interface standing in for the source's class hierarchy (§9
// design note: "replace with a tagged variant IndexKind and an Index
// capability {insert, delete, search, range?, rebuild, stats}"). Those
// structures provide Name and Len but not Kind or Metadata, so none of
// them satisfies Capability on its own.
package index

import "time"

// Rid is an opaque row identifier, stable for the lifetime of the row.
// The table layer assigns it; the index core never interprets its bits.
type Rid uint64

// Kind tags which structure backs an index.
type Kind int

const (
	KindBTree Kind = iota
	KindHash
	KindBitmap
	KindRTree
	KindGiST
	KindComposite
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindBTree:
		return "btree"
	case KindHash:
		return "hash"
	case KindBitmap:
		return "bitmap"
	case KindRTree:
		return "rtree"
	case KindGiST:
		return "gist"
	case KindComposite:
		return "composite"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// State is the index lifecycle (§3.2).
type State int

const (
	StateCreated State = iota
	StatePopulated
	StateActive
	StateMaintenance
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePopulated:
		return "populated"
	case StateActive:
		return "active"
	case StateMaintenance:
		return "maintenance"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Health classifies an index for the manager's health snapshot (§7).
type Health int

const (
	HealthHealthy Health = iota
	HealthDegraded
	HealthCritical
	HealthNeedsMaintenance
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthCritical:
		return "critical"
	case HealthNeedsMaintenance:
		return "needs_maintenance"
	default:
		return "unknown"
	}
}

// Metadata describes an index entity (§3.2) independent of its backing
// structure.
type Metadata struct {
	Name       string
	Table      string
	Columns    []string
	Kind       Kind
	Unique     bool
	Primary    bool
	Properties map[string]any
	State      State
	CreatedAt  time.Time
}

// Capability is the operational contract the manager registers and drives.
// Range and Rebuild are not part of the minimal contract because hash
// indexes reject Range (§4.2) and some structures have no meaningful
// rebuild; callers type-assert against the optional interfaces below.
type Capability interface {
	Name() string
	Kind() Kind
	Metadata() Metadata
	Len() int
}

// Ranger is implemented by structures that support an ordered range scan
// (B-tree, bitmap's value-range OR, composite-over-btree).
type Ranger[K, V any] interface {
	Range(lo, hi K) ([]V, error)
}

// Rebuilder is implemented by structures that can compact/reindex in
// place. Rebuild failures must leave the prior structure serving (§4.8).
type Rebuilder interface {
	Rebuild() error
}

// Exporter is implemented by structures that can serialize their
// contents to a plain, storage-adapter-friendly map, backing the
// storage adapter collaborator's export(name) surface (§6.2).
type Exporter interface {
	Export() (map[string]any, error)
}

// Importer is implemented by structures that can repopulate themselves
// from a map previously produced by Exporter.Export, backing the
// storage adapter collaborator's import(name, payload) surface (§6.2).
type Importer interface {
	Import(data map[string]any) error
}

// Locker is the reentrant-capable read-write lock every index owns (§5:
// "each index owns a reentrant read-write lock"). It is a thin alias over
// sync.RWMutex semantics; reentrancy is achieved structurally (internal
// methods never re-acquire the same index's lock) rather than through a
// counting lock, which is the idiomatic Go approach — a truly reentrant
// RWMutex would need goroutine-id tracking the standard library does not
// expose safely.
type Locker interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
}
