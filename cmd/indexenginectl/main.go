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

// Command indexenginectl inspects an index engine's persisted
// statistics store: latest/historical stats per index, trend analysis,
// and storage-adapter export/import, plus validating a configuration
// file. It has no subcommand that constructs a live index, since the
// engine's index types are generic over a row-key type fixed at
// compile time by the embedding program (§9 design note) — this tool
// operates on the durable side channel (stats.Store, storageadapter
// files) a running process leaves behind.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
