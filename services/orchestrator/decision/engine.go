// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decision selects an orchestration strategy from the data-source
// and rule population plus current resource state.
//
// The policy is a fixed threshold table, not a learned model, so every
// chosen strategy is explainable and reproducible in tests. The threshold
// constants are a contract shared with operators; do not tune them without
// a product decision.
package decision

import (
	"log/slog"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
)

// Threshold constants for the strategy policy.
const (
	// parallelAvailability is the minimum resource availability score for
	// fully parallel execution.
	parallelAvailability = 0.8

	// parallelMaxComplexity is the maximum dependency complexity for fully
	// parallel execution.
	parallelMaxComplexity = 0.3

	// dependencyAwareComplexity forces dependency-aware execution above
	// this complexity regardless of resource state.
	dependencyAwareComplexity = 0.7

	// resourceAwareAvailability forces resource-aware execution below this
	// availability score.
	resourceAwareAvailability = 0.4
)

// Engine chooses orchestration strategies.
//
// # Thread Safety
//
// Engine is stateless and safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// New creates a decision engine. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// ResourceAvailabilityScore is the mean of (1 - utilization) across the
// cpu, memory and network pools. Storage is deliberately excluded: scan
// scratch space is reclaimed between steps and does not gate concurrency.
func (e *Engine) ResourceAvailabilityScore(util map[datatypes.ResourceKind]float64) float64 {
	kinds := []datatypes.ResourceKind{
		datatypes.ResourceCPU,
		datatypes.ResourceMemory,
		datatypes.ResourceNetwork,
	}
	sum := 0.0
	for _, kind := range kinds {
		u := util[kind]
		if u < 0 {
			u = 0
		}
		if u > 1 {
			u = 1
		}
		sum += 1 - u
	}
	return sum / float64(len(kinds))
}

// DependencyComplexity is the count of explicit rule-to-rule dependencies
// divided by the maximum possible pairwise dependencies among the candidate
// data sources, clamped to [0,1].
func (e *Engine) DependencyComplexity(requests []datatypes.ScanRequest) float64 {
	sources := make(map[string]bool, len(requests))
	depCount := 0
	for _, req := range requests {
		sources[req.DataSourceID] = true
		for _, rule := range req.Rules {
			depCount += len(rule.DependsOn)
		}
	}

	n := len(sources)
	maxPairs := n * (n - 1) / 2
	if maxPairs == 0 {
		if depCount > 0 {
			return 1
		}
		return 0
	}

	complexity := float64(depCount) / float64(maxPairs)
	if complexity > 1 {
		complexity = 1
	}
	return complexity
}

// ChooseStrategy applies the threshold policy:
//
//	availability > 0.8 and complexity < 0.3  → parallel
//	complexity > 0.7                         → dependency_aware
//	availability < 0.4                       → resource_aware
//	any critical data source                 → priority_based
//	otherwise                                → adaptive
func (e *Engine) ChooseStrategy(requests []datatypes.ScanRequest,
	util map[datatypes.ResourceKind]float64) datatypes.Strategy {

	availability := e.ResourceAvailabilityScore(util)
	complexity := e.DependencyComplexity(requests)

	var strategy datatypes.Strategy
	switch {
	case availability > parallelAvailability && complexity < parallelMaxComplexity:
		strategy = datatypes.StrategyParallel
	case complexity > dependencyAwareComplexity:
		strategy = datatypes.StrategyDependencyAware
	case availability < resourceAwareAvailability:
		strategy = datatypes.StrategyResourceAware
	case anyCritical(requests):
		strategy = datatypes.StrategyPriorityBased
	default:
		strategy = datatypes.StrategyAdaptive
	}

	e.logger.Debug("strategy selected",
		"strategy", strategy,
		"resource_availability", availability,
		"dependency_complexity", complexity)
	return strategy
}

func anyCritical(requests []datatypes.ScanRequest) bool {
	for _, req := range requests {
		if req.Critical {
			return true
		}
	}
	return false
}
