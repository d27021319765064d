// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decision

import (
	"testing"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
)

// utilFor builds a utilization map yielding the given availability score
// for cpu/memory/network.
func utilFor(availability float64) map[datatypes.ResourceKind]float64 {
	u := 1 - availability
	return map[datatypes.ResourceKind]float64{
		datatypes.ResourceCPU:     u,
		datatypes.ResourceMemory:  u,
		datatypes.ResourceNetwork: u,
	}
}

// requestsWithComplexity builds requests over enough data sources to yield
// the given dependency complexity: deps / (n*(n-1)/2).
func requestsWithComplexity(sources int, deps int) []datatypes.ScanRequest {
	reqs := make([]datatypes.ScanRequest, sources)
	for i := range reqs {
		reqs[i] = datatypes.ScanRequest{
			DataSourceID: string(rune('a' + i)),
			Rules:        []datatypes.ScanRule{{RuleID: "r"}},
		}
	}
	// Attach all dependencies to the first request's rule.
	ruleDeps := make([]string, deps)
	for i := range ruleDeps {
		ruleDeps[i] = "r"
	}
	reqs[0].Rules[0].DependsOn = ruleDeps
	return reqs
}

func TestResourceAvailabilityScore(t *testing.T) {
	e := New(nil)

	assert.InDelta(t, 0.9, e.ResourceAvailabilityScore(utilFor(0.9)), 1e-9)
	assert.InDelta(t, 1.0, e.ResourceAvailabilityScore(nil), 1e-9)

	// Out-of-range utilization is clamped.
	score := e.ResourceAvailabilityScore(map[datatypes.ResourceKind]float64{
		datatypes.ResourceCPU:     1.7,
		datatypes.ResourceMemory:  -0.2,
		datatypes.ResourceNetwork: 0.5,
	})
	assert.InDelta(t, (0.0+1.0+0.5)/3, score, 1e-9)
}

func TestDependencyComplexity(t *testing.T) {
	e := New(nil)

	// 5 sources → 10 possible pairs; 2 dependencies → 0.2.
	assert.InDelta(t, 0.2, e.DependencyComplexity(requestsWithComplexity(5, 2)), 1e-9)

	// Clamped at 1.
	assert.InDelta(t, 1.0, e.DependencyComplexity(requestsWithComplexity(2, 9)), 1e-9)

	// Single source with dependencies saturates; without, zero.
	assert.InDelta(t, 1.0, e.DependencyComplexity(requestsWithComplexity(1, 3)), 1e-9)
	assert.InDelta(t, 0.0, e.DependencyComplexity(requestsWithComplexity(1, 0)), 1e-9)
}

func TestChooseStrategy_Thresholds(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name         string
		availability float64
		sources      int
		deps         int
		critical     bool
		want         datatypes.Strategy
	}{
		{"high availability low complexity", 0.9, 5, 2, false, datatypes.StrategyParallel},
		{"high complexity wins over resources", 0.9, 5, 8, false, datatypes.StrategyDependencyAware},
		{"high complexity with low resources", 0.2, 5, 8, false, datatypes.StrategyDependencyAware},
		{"scarce resources", 0.3, 5, 4, false, datatypes.StrategyResourceAware},
		{"critical source", 0.6, 5, 4, true, datatypes.StrategyPriorityBased},
		{"middle ground", 0.6, 5, 4, false, datatypes.StrategyAdaptive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := requestsWithComplexity(tt.sources, tt.deps)
			if tt.critical {
				reqs[1].Critical = true
			}
			got := e.ChooseStrategy(reqs, utilFor(tt.availability))
			assert.Equal(t, tt.want, got)
		})
	}
}
