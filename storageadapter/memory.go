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

import "sync"

// MemoryAdapter is an Adapter backed by a plain in-process map, useful
// for tests and for call sites that only need the export/import
// contract satisfied without touching a filesystem.
type MemoryAdapter struct {
	mu    sync.RWMutex
	store map[string]Payload
}

// NewMemoryAdapter builds an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{store: make(map[string]Payload)}
}

func (a *MemoryAdapter) Export(name string) (Payload, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.store[name]
	return p, ok, nil
}

func (a *MemoryAdapter) Import(name string, payload Payload) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store[name] = payload
	return true, nil
}
