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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/datapunk/indexengine/logging"
	"github.com/datapunk/indexengine/stats"
)

var dbPath string

// logMode is a pflag.Value so --log-mode rejects anything but its two
// known settings at parse time instead of a freeform string the logger
// constructor would have to validate later.
type logMode string

const (
	logModeProduction  logMode = "production"
	logModeDevelopment logMode = "development"
)

func (m *logMode) String() string { return string(*m) }

func (m *logMode) Set(v string) error {
	switch logMode(v) {
	case logModeProduction, logModeDevelopment:
		*m = logMode(v)
		return nil
	default:
		return fmt.Errorf("log-mode must be %q or %q", logModeProduction, logModeDevelopment)
	}
}

func (m *logMode) Type() string { return "logMode" }

var currentLogMode = logModeProduction

var _ pflag.Value = (*logMode)(nil)

var rootCmd = &cobra.Command{
	Use:   "indexenginectl",
	Short: "Inspect an index engine's persisted statistics and backups",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "indexengine.db", "path to the statistics SQLite store")
	rootCmd.PersistentFlags().Var(&currentLogMode, "log-mode", "logger mode: production or development")
}

func openStore() (*stats.Store, *zap.Logger) {
	var log *zap.Logger
	if currentLogMode == logModeDevelopment {
		log = logging.Development()
	} else {
		log = logging.Production()
	}
	st, err := stats.Open(dbPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening statistics store %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	return st, log
}
