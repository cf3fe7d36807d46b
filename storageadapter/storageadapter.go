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

// Package storageadapter defines the storage-adapter collaborator
// interface of §6.2 ("export(name) → bytes-or-dict, import(name,
// payload) → bool. The core uses these only to make backups and
// migrations possible; the on-disk format is adapter-defined") plus an
// in-memory implementation for tests and a gob-encoded file
// implementation for the CLI's backup subcommands. Grounded on
// storage/index/backup.py's BackupManager, trimmed per SPEC_FULL.md
// §D.4 to the adapter surface itself: BackupManager's retention
// scheduling, async worker queue, checksum verification, and
// incremental-backup chaining are out of scope (§1 excludes archival
// retention policy), so only the bare export/import round trip
// survives here; the manager (not this package) decides when to call
// it.
package storageadapter

// Payload is the adapter-agnostic unit exchanged with Export/Import:
// an index's name, kind tag, and its Exporter-produced data.
type Payload struct {
	IndexName string
	Kind      string
	Data      map[string]any
}

// Adapter is the storage-adapter collaborator interface. Export
// returns false when name has never been stored. Import stores payload
// under name regardless of payload.IndexName, so restoring under a
// different name than the one originally exported is the caller's
// choice, not an error condition.
type Adapter interface {
	Export(name string) (Payload, bool, error)
	Import(name string, payload Payload) (bool, error)
}
