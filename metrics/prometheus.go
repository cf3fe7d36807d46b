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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink is a Sink backed by an "index" label vector per
// counter/gauge, registered against the given registerer.
type PrometheusSink struct {
	reads       *prometheus.CounterVec
	writes      *prometheus.CounterVec
	latencyMs   *prometheus.HistogramVec
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	sizeBytes   *prometheus.GaugeVec
	entries     *prometheus.GaugeVec
}

// NewPrometheusSink registers the index-engine's metric family on reg
// and returns a Sink reporting through it.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index", Name: "reads_total", Help: "Total read operations against an index.",
		}, []string{"index"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index", Name: "writes_total", Help: "Total write operations against an index.",
		}, []string{"index"}),
		latencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "index", Name: "latency_ms", Help: "Operation latency against an index, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"index"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index", Name: "cache_hits_total", Help: "Total cache hits serving an index's lookups.",
		}, []string{"index"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index", Name: "cache_misses_total", Help: "Total cache misses serving an index's lookups.",
		}, []string{"index"}),
		sizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "index", Name: "size_bytes", Help: "Current estimated size of an index, in bytes.",
		}, []string{"index"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "index", Name: "entries", Help: "Current entry count of an index.",
		}, []string{"index"}),
	}

	if reg != nil {
		reg.MustRegister(s.reads, s.writes, s.latencyMs, s.cacheHits, s.cacheMisses, s.sizeBytes, s.entries)
	}
	return s
}

func (s *PrometheusSink) IncReads(index string, n int64)  { s.reads.WithLabelValues(index).Add(float64(n)) }
func (s *PrometheusSink) IncWrites(index string, n int64) { s.writes.WithLabelValues(index).Add(float64(n)) }
func (s *PrometheusSink) ObserveLatencyMs(index string, ms float64) {
	s.latencyMs.WithLabelValues(index).Observe(ms)
}
func (s *PrometheusSink) IncCacheHits(index string, n int64) {
	s.cacheHits.WithLabelValues(index).Add(float64(n))
}
func (s *PrometheusSink) IncCacheMisses(index string, n int64) {
	s.cacheMisses.WithLabelValues(index).Add(float64(n))
}
func (s *PrometheusSink) SetSizeBytes(index string, bytes int64) {
	s.sizeBytes.WithLabelValues(index).Set(float64(bytes))
}
func (s *PrometheusSink) SetEntries(index string, n int64) {
	s.entries.WithLabelValues(index).Set(float64(n))
}
