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

// Package config defines the configuration bag of §6.3: the
// index-manager options, the trigger thresholds, the statistics store
// retention, and the partial optimizer's merge breadth, all loaded
// from one TOML document via github.com/pelletier/go-toml/v2.
// Defaults are applied before decoding, matching go-toml/v2's documented
// behavior of leaving absent fields untouched — so an incomplete config
// file inherits §6.3's named defaults for whatever it omits, rather
// than zeroing them.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ManagerConfig mirrors §6.3's index-manager configuration bag.
type ManagerConfig struct {
	MaxWorkers                 int  `toml:"max_workers"`
	EnableAutoMaintenance      bool `toml:"enable_auto_maintenance"`
	EnableAdvisor              bool `toml:"enable_advisor"`
	MaintenanceIntervalSeconds int  `toml:"maintenance_interval_seconds"`
	OperationTimeoutSeconds    int  `toml:"operation_timeout_seconds"`
}

// TriggerConfig mirrors §6.3's trigger configuration.
type TriggerConfig struct {
	FragmentationThreshold  float64 `toml:"fragmentation_threshold"`
	ReadTimeThresholdMs     float64 `toml:"read_time_threshold_ms"`
	WriteTimeThresholdMs    float64 `toml:"write_time_threshold_ms"`
	CacheHitRatioThreshold  float64 `toml:"cache_hit_ratio_threshold"`
	SizeGrowthRateThreshold float64 `toml:"size_growth_rate_threshold"`
	FalsePositiveThreshold  float64 `toml:"false_positive_threshold"`
	CheckIntervalSeconds    int     `toml:"check_interval_seconds"`
	CooldownMinutes         int     `toml:"cooldown_minutes"`
	MinSampleSize           int64   `toml:"min_sample_size"`
}

// StatsConfig mirrors §6.3's statistics-store options.
type StatsConfig struct {
	RetentionDays         int `toml:"retention_days"`
	SnapshotIntervalHours int `toml:"snapshot_interval_hours"`
}

// OptimizerConfig mirrors §6.3's partial-optimizer option.
type OptimizerConfig struct {
	MaxMergeBreadth int `toml:"max_merge_breadth"`
}

// Config is the full configuration bag decoded from one TOML document.
type Config struct {
	Manager   ManagerConfig   `toml:"manager"`
	Trigger   TriggerConfig   `toml:"trigger"`
	Stats     StatsConfig     `toml:"stats"`
	Optimizer OptimizerConfig `toml:"optimizer"`
}

// Default returns §6.3's named defaults for every option.
func Default() Config {
	return Config{
		Manager: ManagerConfig{
			MaxWorkers:                 4,
			EnableAutoMaintenance:      true,
			EnableAdvisor:              true,
			MaintenanceIntervalSeconds: 300,
			OperationTimeoutSeconds:    10,
		},
		Trigger: TriggerConfig{
			FragmentationThreshold:  0.3,
			ReadTimeThresholdMs:     100,
			WriteTimeThresholdMs:    200,
			CacheHitRatioThreshold:  0.7,
			SizeGrowthRateThreshold: 0.5,
			FalsePositiveThreshold:  0.2,
			CheckIntervalSeconds:    300,
			CooldownMinutes:         60,
			MinSampleSize:           100,
		},
		Stats: StatsConfig{
			RetentionDays:         30,
			SnapshotIntervalHours: 1,
		},
		Optimizer: OptimizerConfig{
			MaxMergeBreadth: 64,
		},
	}
}

// Load reads path as TOML into Default()'s bag, so any option the file
// omits keeps its §6.3 default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MaintenanceInterval is a time.Duration view of
// ManagerConfig.MaintenanceIntervalSeconds.
func (c ManagerConfig) MaintenanceInterval() time.Duration {
	return time.Duration(c.MaintenanceIntervalSeconds) * time.Second
}

// OperationTimeout is a time.Duration view of
// ManagerConfig.OperationTimeoutSeconds.
func (c ManagerConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

// CheckInterval is a time.Duration view of
// TriggerConfig.CheckIntervalSeconds.
func (c TriggerConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// Cooldown is a time.Duration view of TriggerConfig.CooldownMinutes.
func (c TriggerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// SnapshotInterval is a time.Duration view of
// StatsConfig.SnapshotIntervalHours.
func (c StatsConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalHours) * time.Hour
}
