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

	"github.com/datapunk/indexengine/trends"
)

var trendDays int

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Analyze trends over an index's recorded statistics",
}

var trendsPerformanceCmd = &cobra.Command{
	Use:   "performance <index>",
	Short: "Analyze read-latency trend, anomalies, and forecast",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, log := openStore()
		defer st.Close()
		defer log.Sync()

		analysis, err := trends.New(st, trends.DefaultConfig()).AnalyzePerformance(cmd.Context(), args[0], trendDays)
		if err != nil {
			return err
		}
		if analysis == nil {
			fmt.Fprintf(os.Stderr, "no statistics history for %q\n", args[0])
			os.Exit(1)
		}
		return json.NewEncoder(os.Stdout).Encode(analysis)
	},
}

var trendsGrowthCmd = &cobra.Command{
	Use:   "growth <index>",
	Short: "Analyze entry-count growth trend, anomalies, and forecast",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, log := openStore()
		defer st.Close()
		defer log.Sync()

		analysis, err := trends.New(st, trends.DefaultConfig()).AnalyzeGrowth(cmd.Context(), args[0], trendDays)
		if err != nil {
			return err
		}
		if analysis == nil {
			fmt.Fprintf(os.Stderr, "no statistics history for %q\n", args[0])
			os.Exit(1)
		}
		return json.NewEncoder(os.Stdout).Encode(analysis)
	},
}

func init() {
	trendsCmd.PersistentFlags().IntVar(&trendDays, "days", 30, "how many days of history to analyze")
	trendsCmd.AddCommand(trendsPerformanceCmd, trendsGrowthCmd)
	rootCmd.AddCommand(trendsCmd)
}
