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

// Package logging is the single place components get a *zap.Logger from.
// There is no package-level logger singleton: every component takes one at
// construction (see §9 design note on eliminating global logger state).
package logging

import "go.uber.org/zap"

// Nop returns a logger that discards everything, for tests and for callers
// that don't want engine diagnostics.
func Nop() *zap.Logger { return zap.NewNop() }

// Development returns a human-readable console logger suitable for the CLI.
func Development() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Production returns a JSON logger suitable for long-running services.
func Production() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
