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

import "context"

// HealthReport is one index's classification in the manager's health
// snapshot (§7, SPEC_FULL.md §D.3): a pure read against the latest
// recorded statistics, comparing them to the trigger engine's own
// thresholds without requiring a trigger to have actually fired.
type HealthReport struct {
	Name   string
	Health string
}

const (
	healthHealthy          = "healthy"
	healthDegraded         = "degraded"
	healthCritical         = "critical"
	healthNeedsMaintenance = "needs_maintenance"
)

// HealthSnapshot classifies every registered index, grounded on
// monitor.py's health classification (named in SPEC_FULL.md §D.3):
// Critical when fragmentation or false-positive rate is far past its
// trigger threshold, NeedsMaintenance when any metric has merely
// crossed its threshold, Degraded when read latency is elevated but
// below threshold, Healthy otherwise.
func (m *Manager) HealthSnapshot(ctx context.Context) []HealthReport {
	if m.store == nil {
		return nil
	}
	names := m.allIndexNames()
	out := make([]HealthReport, 0, len(names))

	cfg := m.cfg.TriggerConfig
	for _, name := range names {
		rec, ok, err := m.store.LatestByIndex(ctx, name)
		if err != nil || !ok {
			out = append(out, HealthReport{Name: name, Health: healthHealthy})
			continue
		}

		status := healthHealthy
		switch {
		case rec.Size.FragmentationRatio > 2*cfg.FragmentationThreshold,
			rec.Condition != nil && rec.Condition.FalsePositiveRate > 2*cfg.FalsePositiveThreshold:
			status = healthCritical
		case rec.Size.FragmentationRatio > cfg.FragmentationThreshold,
			rec.Usage.AvgReadTimeMs > cfg.ReadTimeThresholdMs,
			rec.Usage.AvgWriteTimeMs > cfg.WriteTimeThresholdMs,
			rec.Condition != nil && rec.Condition.FalsePositiveRate > cfg.FalsePositiveThreshold:
			status = healthNeedsMaintenance
		case rec.Usage.AvgReadTimeMs > cfg.ReadTimeThresholdMs*0.5:
			status = healthDegraded
		}
		out = append(out, HealthReport{Name: name, Health: status})
	}
	return out
}
