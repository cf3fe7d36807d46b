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

// Package metrics defines the metrics-sink collaborator interface of
// §6.2 ("receives counters/timers named
// index.<name>.{reads,writes,latency_ms,cache_hits,cache_misses,size_bytes,entries}")
// and a github.com/prometheus/client_golang implementation, in the
// label-vector style the example pack's Prometheus integrations use
// (see e.g. internal/wal/metrics.go's promauto-registered package-level
// vars) generalized to carry the index name as a label rather than
// baking it into the metric name, since the index set is created and
// dropped at runtime.
package metrics

// Sink is the collaborator interface every index-aware component
// reports through; a nil-safe NopSink is provided for tests and for
// callers that never configured a backing registry.
type Sink interface {
	IncReads(index string, n int64)
	IncWrites(index string, n int64)
	ObserveLatencyMs(index string, ms float64)
	IncCacheHits(index string, n int64)
	IncCacheMisses(index string, n int64)
	SetSizeBytes(index string, bytes int64)
	SetEntries(index string, entries int64)
}

// NopSink discards every observation; the zero value is ready to use.
type NopSink struct{}

func (NopSink) IncReads(string, int64)           {}
func (NopSink) IncWrites(string, int64)          {}
func (NopSink) ObserveLatencyMs(string, float64) {}
func (NopSink) IncCacheHits(string, int64)       {}
func (NopSink) IncCacheMisses(string, int64)     {}
func (NopSink) SetSizeBytes(string, int64)       {}
func (NopSink) SetEntries(string, int64)         {}
