// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"math"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
)

// =============================================================================
// Complexity Scoring
// =============================================================================

// Scoring weights. These are a fixed contract with downstream dashboards
// and capacity planning; do not tune them without versioning the analysis.
const (
	manySourcesBonus  = 30 // more than 10 distinct data sources
	someSourcesBonus  = 15 // more than 5
	manySourcesCutoff = 10
	someSourcesCutoff = 5

	veryComplexRuleWeight = 25
	complexRuleWeight     = 15
	moderateRuleWeight    = 8

	hugeVolumeBonus   = 40 // more than 1000 GB
	largeVolumeBonus  = 20 // more than 100 GB
	hugeVolumeCutoff  = 1000.0
	largeVolumeCutoff = 100.0

	complianceWeight = 5
)

// Level cutoffs.
const (
	veryHighCutoff = 80
	highCutoff     = 60
	mediumCutoff   = 40
	lowCutoff      = 20
)

// AnalyzeRequests computes the deterministic complexity analysis for a
// batch of scan requests.
//
// # Description
//
// The score aggregates over the whole batch: distinct data sources, every
// rule, total estimated volume, and the union of compliance frameworks.
// Starting from zero:
//
//   - +30 if distinct data sources > 10, else +15 if > 5
//   - per rule: +25 very_complex, +15 complex, +8 moderate
//   - +40 if total volume > 1000 GB, else +20 if > 100 GB
//   - +5 per distinct compliance requirement
//
// Score maps to level at ≥80 very_high, ≥60 high, ≥40 medium, ≥20 low,
// else very_low. Recommended resources derive from the score alone, so
// identical inputs always produce identical recommendations.
func AnalyzeRequests(requests []datatypes.ScanRequest) datatypes.RequestAnalysis {
	sources := make(map[string]struct{}, len(requests))
	compliance := make(map[string]struct{})
	ruleCount := 0
	totalVolume := 0.0
	score := 0

	for _, req := range requests {
		sources[req.DataSourceID] = struct{}{}
		totalVolume += req.EstimatedVolumeGB
		for _, fw := range req.ComplianceRequirements {
			compliance[fw] = struct{}{}
		}
		for _, rule := range req.Rules {
			ruleCount++
			switch rule.Complexity {
			case datatypes.RuleVeryComplex:
				score += veryComplexRuleWeight
			case datatypes.RuleComplex:
				score += complexRuleWeight
			case datatypes.RuleModerate:
				score += moderateRuleWeight
			}
		}
	}

	switch {
	case len(sources) > manySourcesCutoff:
		score += manySourcesBonus
	case len(sources) > someSourcesCutoff:
		score += someSourcesBonus
	}

	switch {
	case totalVolume > hugeVolumeCutoff:
		score += hugeVolumeBonus
	case totalVolume > largeVolumeCutoff:
		score += largeVolumeBonus
	}

	score += complianceWeight * len(compliance)

	return datatypes.RequestAnalysis{
		Score:                score,
		Level:                levelFor(score),
		DataSourceCount:      len(sources),
		RuleCount:            ruleCount,
		TotalVolumeGB:        totalVolume,
		ComplianceCount:      len(compliance),
		RecommendedResources: recommendResources(score, totalVolume),
	}
}

// levelFor maps a complexity score to its qualitative level.
func levelFor(score int) datatypes.ComplexityLevel {
	switch {
	case score >= veryHighCutoff:
		return datatypes.ComplexityVeryHigh
	case score >= highCutoff:
		return datatypes.ComplexityHigh
	case score >= mediumCutoff:
		return datatypes.ComplexityMedium
	case score >= lowCutoff:
		return datatypes.ComplexityLow
	default:
		return datatypes.ComplexityVeryLow
	}
}

// recommendResources derives the resource recommendation from the score.
// Storage is scratch space sized at 10% of the scanned volume.
func recommendResources(score int, totalVolumeGB float64) datatypes.ResourceRequirement {
	cpu := score / 20
	if cpu < 2 {
		cpu = 2
	}
	return datatypes.ResourceRequirement{
		CPUCores:    float64(cpu),
		MemoryMB:    float64(cpu) * 1024,
		NetworkMbps: 100,
		StorageGB:   math.Ceil(totalVolumeGB * 0.1),
	}
}

// analyzeOne scores a single request in isolation, used to size the
// per-workflow allocation inside a plan.
func analyzeOne(req datatypes.ScanRequest) datatypes.RequestAnalysis {
	return AnalyzeRequests([]datatypes.ScanRequest{req})
}

// =============================================================================
// Risk Assessment
// =============================================================================

// assessRisk derives the qualitative risk level from plan complexity and
// resource tightness, with one contingency action per identified factor.
func assessRisk(analysis datatypes.RequestAnalysis, availability float64) (datatypes.RiskAssessment, []datatypes.ContingencyPlan) {
	var factors []string
	var contingencies []datatypes.ContingencyPlan

	switch analysis.Level {
	case datatypes.ComplexityVeryHigh:
		factors = append(factors, "very high plan complexity")
		contingencies = append(contingencies, datatypes.ContingencyPlan{
			Risk:   "very high plan complexity",
			Action: "fall back to sequential execution",
		})
	case datatypes.ComplexityHigh:
		factors = append(factors, "high plan complexity")
		contingencies = append(contingencies, datatypes.ContingencyPlan{
			Risk:   "high plan complexity",
			Action: "reduce parallelism",
		})
	}

	if availability < 0.2 {
		factors = append(factors, "resource pool nearly exhausted")
		contingencies = append(contingencies, datatypes.ContingencyPlan{
			Risk:   "resource pool nearly exhausted",
			Action: "queue until resources free",
		})
	} else if availability < 0.4 {
		factors = append(factors, "resource pool under pressure")
		contingencies = append(contingencies, datatypes.ContingencyPlan{
			Risk:   "resource pool under pressure",
			Action: "reduce parallelism",
		})
	}

	level := datatypes.RiskLow
	switch {
	case analysis.Level == datatypes.ComplexityVeryHigh || availability < 0.2:
		level = datatypes.RiskHigh
	case analysis.Level == datatypes.ComplexityHigh || availability < 0.4:
		level = datatypes.RiskMedium
	}

	return datatypes.RiskAssessment{Level: level, Factors: factors}, contingencies
}
