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

package config

import (
	"github.com/datapunk/indexengine/manager"
	"github.com/datapunk/indexengine/triggers"
)

// ToManagerConfig translates the decoded bag into manager.Config, the
// shape manager.New actually takes.
func (c Config) ToManagerConfig() manager.Config {
	return manager.Config{
		MaxWorkers:       c.Manager.MaxWorkers,
		MaintenanceTick:  c.Manager.MaintenanceInterval(),
		OperationTimeout: c.Manager.OperationTimeout(),
		TriggerConfig:    c.ToTriggerConfig(),
		PlanCacheSize:    256,
	}
}

// ToTriggerConfig translates the decoded bag into triggers.Config.
func (c Config) ToTriggerConfig() triggers.Config {
	return triggers.Config{
		FragmentationThreshold:  c.Trigger.FragmentationThreshold,
		ReadTimeThresholdMs:     c.Trigger.ReadTimeThresholdMs,
		WriteTimeThresholdMs:    c.Trigger.WriteTimeThresholdMs,
		CacheHitRatioThreshold:  c.Trigger.CacheHitRatioThreshold,
		SizeGrowthRateThreshold: c.Trigger.SizeGrowthRateThreshold,
		FalsePositiveThreshold:  c.Trigger.FalsePositiveThreshold,
		CheckInterval:           c.Trigger.CheckInterval(),
		MinSampleSize:           c.Trigger.MinSampleSize,
		Cooldown:                c.Trigger.Cooldown(),
	}
}
