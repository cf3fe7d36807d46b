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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datapunk/indexengine/storageadapter"
)

// backupCmd operates directly on storageadapter.FileAdapter directories
// rather than through manager.ExportIndex/ImportIndex: this CLI process
// has no live registered index to type-assert Exporter/Importer
// against, only the gob files a running process already exported. It
// therefore copies and inspects Payloads at the adapter level, which is
// sufficient for a migration tool moving a backup between directories
// or machines.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Inspect and copy storage-adapter export files",
}

var backupDir string

var backupShowCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Print the exported payload for an index as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := storageadapter.NewFileAdapter(backupDir)
		if err != nil {
			return err
		}
		payload, ok, err := adapter.Export(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "no exported payload for %q under %s\n", args[0], backupDir)
			os.Exit(1)
		}
		return json.NewEncoder(os.Stdout).Encode(payload)
	},
}

var backupCopyFrom, backupCopyTo string

var backupCopyCmd = &cobra.Command{
	Use:   "copy <index>",
	Short: "Copy an exported payload between two storage-adapter directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := storageadapter.NewFileAdapter(backupCopyFrom)
		if err != nil {
			return err
		}
		dst, err := storageadapter.NewFileAdapter(backupCopyTo)
		if err != nil {
			return err
		}

		payload, ok, err := src.Export(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "no exported payload for %q under %s\n", args[0], backupCopyFrom)
			os.Exit(1)
		}
		if _, err := dst.Import(args[0], payload); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "copied %q: %s -> %s\n", args[0], backupCopyFrom, backupCopyTo)
		return nil
	},
}

func init() {
	backupShowCmd.Flags().StringVar(&backupDir, "dir", ".", "storage-adapter export directory")

	backupCopyCmd.Flags().StringVar(&backupCopyFrom, "from", ".", "source storage-adapter export directory")
	backupCopyCmd.Flags().StringVar(&backupCopyTo, "to", ".", "destination storage-adapter export directory")

	backupCmd.AddCommand(backupShowCmd, backupCopyCmd)
	rootCmd.AddCommand(backupCmd)
}
