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

package storageadapter

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// gob requires every concrete type placed in a map[string]any to be
// registered before it can cross an interface boundary; these cover
// the value types index.Exporter implementations are expected to
// produce (counts, ratios, timestamps, row keys, nested payloads).
func init() {
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(uint64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register(time.Time{})
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register([]string{})
}

// FileAdapter is an Adapter backed by one gob-encoded file per index
// under a directory, used by the CLI's backup show/copy subcommands.
// Unlike BackupManager's full/incremental/metadata split with
// checksums and retention, this is a single-file-per-name round trip:
// the CLI's backup commands are a migration tool, not a backup
// scheduler (§1 excludes archival retention).
type FileAdapter struct {
	dir string
}

// NewFileAdapter builds a FileAdapter rooted at dir, creating it if
// missing.
func NewFileAdapter(dir string) (*FileAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileAdapter{dir: dir}, nil
}

func (a *FileAdapter) path(name string) string {
	return filepath.Join(a.dir, name+".gob")
}

func (a *FileAdapter) Export(name string) (Payload, bool, error) {
	f, err := os.Open(a.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Payload{}, false, nil
	}
	if err != nil {
		return Payload{}, false, err
	}
	defer f.Close()

	var p Payload
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return Payload{}, false, err
	}
	return p, true, nil
}

func (a *FileAdapter) Import(name string, payload Payload) (bool, error) {
	f, err := os.Create(a.path(name))
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(payload); err != nil {
		return false, err
	}
	return true, nil
}
