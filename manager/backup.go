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
	"go.uber.org/zap"

	"github.com/datapunk/indexengine/index"
	"github.com/datapunk/indexengine/indexerr"
	"github.com/datapunk/indexengine/storageadapter"
)

// ExportIndex serializes name through adapter, mirroring
// BackupManager._perform_backup trimmed to its essential
// export-then-store step (no checksum, no incremental chaining — see
// package storageadapter's doc comment for why). It returns an
// Unsupported error when the registered index does not implement
// index.Exporter.
func (m *Manager) ExportIndex(adapter storageadapter.Adapter, name string) error {
	cap, ok := m.GetIndex(name)
	if !ok {
		return indexNotFound(name)
	}
	exporter, ok := cap.(index.Exporter)
	if !ok {
		return indexerr.New(indexerr.KindUnsupported, name, "index does not support export")
	}

	data, err := exporter.Export()
	if err != nil {
		return err
	}

	_, err = adapter.Import(name, storageadapter.Payload{IndexName: name, Kind: cap.Kind().String(), Data: data})
	if err != nil {
		return err
	}
	m.log.Info("exported index", zap.String("index", name))
	return nil
}

// ImportIndex restores name from adapter into the already-registered
// index of the same name, mirroring BackupManager.restore_backup
// trimmed to the same essential round trip.
func (m *Manager) ImportIndex(adapter storageadapter.Adapter, name string) (bool, error) {
	cap, ok := m.GetIndex(name)
	if !ok {
		return false, indexNotFound(name)
	}
	importer, ok := cap.(index.Importer)
	if !ok {
		return false, indexerr.New(indexerr.KindUnsupported, name, "index does not support import")
	}

	payload, found, err := adapter.Export(name)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := importer.Import(payload.Data); err != nil {
		return false, err
	}
	m.log.Info("imported index", zap.String("index", name))
	return true, nil
}
