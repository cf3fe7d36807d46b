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
	"time"

	"github.com/spf13/cobra"
)

var statsHistoryDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect an index's recorded statistics",
}

var statsShowCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Print the latest recorded statistics for an index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, log := openStore()
		defer st.Close()
		defer log.Sync()

		rec, ok, err := st.LatestByIndex(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "no statistics recorded for %q\n", args[0])
			os.Exit(1)
		}
		return json.NewEncoder(os.Stdout).Encode(rec)
	},
}

var statsHistoryCmd = &cobra.Command{
	Use:   "history <index>",
	Short: "Print recorded statistics history for an index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, log := openStore()
		defer st.Close()
		defer log.Sync()

		end := time.Now()
		start := end.AddDate(0, 0, -statsHistoryDays)
		history, err := st.History(cmd.Context(), args[0], start, end)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(history)
	},
}

func init() {
	statsHistoryCmd.Flags().IntVar(&statsHistoryDays, "days", 30, "how many days of history to print")
	statsCmd.AddCommand(statsShowCmd, statsHistoryCmd)
	rootCmd.AddCommand(statsCmd)
}
