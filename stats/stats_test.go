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

package stats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapunk/indexengine/stats"
)

func TestRecordNeedsOptimizationOnFragmentation(t *testing.T) {
	rec := stats.Record{Size: stats.Size{FragmentationRatio: 0.4}}
	require.True(t, rec.NeedsOptimization())
}

func TestRecordNeedsOptimizationOnSlowReads(t *testing.T) {
	rec := stats.Record{Usage: stats.Usage{AvgReadTimeMs: 150}}
	require.True(t, rec.NeedsOptimization())
}

func TestRecordNeedsOptimizationOnFalsePositiveRate(t *testing.T) {
	rec := stats.Record{Condition: &stats.Condition{FalsePositiveRate: 0.3}}
	require.True(t, rec.NeedsOptimization())
}

func TestRecordHealthyDoesNotNeedOptimization(t *testing.T) {
	rec := stats.Record{
		Size:      stats.Size{FragmentationRatio: 0.05},
		Usage:     stats.Usage{AvgReadTimeMs: 5},
		Condition: &stats.Condition{FalsePositiveRate: 0.01},
	}
	require.False(t, rec.NeedsOptimization())
}
