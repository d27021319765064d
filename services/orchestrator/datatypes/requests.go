// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// =============================================================================
// Priorities
// =============================================================================

// Priority orders scan requests relative to each other. Higher values are
// scheduled ahead of lower values by priority-aware strategies.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
	PriorityEmergency
)

// String returns the lowercase name used in API payloads and logs.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityEmergency:
		return "emergency"
	}
	return "unknown"
}

// ParsePriority maps an API string to a Priority. Unknown strings map to
// PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	case "emergency":
		return PriorityEmergency
	default:
		return PriorityNormal
	}
}

// =============================================================================
// Strategies and Modes
// =============================================================================

// Strategy is the coordination policy chosen for one orchestration request.
type Strategy string

const (
	StrategyParallel        Strategy = "parallel"
	StrategySequential      Strategy = "sequential"
	StrategyPriorityBased   Strategy = "priority_based"
	StrategyResourceAware   Strategy = "resource_aware"
	StrategyDependencyAware Strategy = "dependency_aware"
	StrategyAdaptive        Strategy = "adaptive"
)

// ValidStrategy reports whether s names a known strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyParallel, StrategySequential, StrategyPriorityBased,
		StrategyResourceAware, StrategyDependencyAware, StrategyAdaptive:
		return true
	}
	return false
}

// Mode controls how much autonomy the orchestrator has while executing a
// plan.
//
//   - ModeAutonomous: optimization and adaptation actions apply automatically.
//   - ModeSupervised: every adaptation requires the confirmation hook.
//   - ModeHybrid: only low-risk adaptations auto-apply.
//   - ModeManual: adaptations are logged as recommendations, never applied.
type Mode string

const (
	ModeAutonomous Mode = "autonomous"
	ModeSupervised Mode = "supervised"
	ModeHybrid     Mode = "hybrid"
	ModeManual     Mode = "manual"
)

// ValidMode reports whether m names a known execution mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeAutonomous, ModeSupervised, ModeHybrid, ModeManual:
		return true
	}
	return false
}

// =============================================================================
// Scan Requests
// =============================================================================

// RuleComplexity classifies how expensive a scan rule is to evaluate. It
// feeds the plan complexity score.
type RuleComplexity string

const (
	RuleSimple      RuleComplexity = "simple"
	RuleModerate    RuleComplexity = "moderate"
	RuleComplex     RuleComplexity = "complex"
	RuleVeryComplex RuleComplexity = "very_complex"
)

// ScanRule identifies one rule to run against a data source, with its
// complexity class and any rules it depends on. DependsOn references rule
// IDs anywhere in the submitted batch: same-request dependencies order the
// scan steps, dependencies on rules in other requests order the workflows,
// and both feed dependency-complexity scoring for strategy selection.
type ScanRule struct {
	RuleID     string         `json:"rule_id" binding:"required"`
	Complexity RuleComplexity `json:"complexity,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
}

// ScanRequest asks the orchestrator to run a set of rules against one data
// source. Requests are immutable once submitted to a plan.
type ScanRequest struct {
	DataSourceID string `json:"data_source_id" binding:"required"`

	Rules []ScanRule `json:"rules" binding:"required,min=1"`

	Priority Priority `json:"priority"`

	// EstimatedVolumeGB is the caller's estimate of data to be scanned.
	EstimatedVolumeGB float64 `json:"estimated_volume_gb"`

	// ComplianceRequirements lists frameworks (GDPR, HIPAA, ...) whose
	// checks must run as part of the scan.
	ComplianceRequirements []string `json:"compliance_requirements,omitempty"`

	// Critical marks the data source as business-critical. Critical sources
	// bias strategy selection toward priority-based execution and put their
	// workflow on the critical path.
	Critical bool `json:"critical,omitempty"`
}

// Constraints bound an orchestration request as a whole.
type Constraints struct {
	// MaxDurationSeconds caps total execution time. Zero means no deadline.
	MaxDurationSeconds float64 `json:"max_duration_seconds,omitempty"`

	// MaxParallelWorkflows caps concurrent workflows. Zero means the
	// engine default.
	MaxParallelWorkflows int `json:"max_parallel_workflows,omitempty"`

	// MaxCostUnits caps the plan's estimated resource cost, measured in
	// CPU core-seconds (recommended cores x estimated duration). Zero
	// means no budget.
	MaxCostUnits float64 `json:"max_cost_units,omitempty"`
}

// OrchestrationRequest is the top-level submission: a batch of scan
// requests plus an optional explicit strategy and constraints.
type OrchestrationRequest struct {
	Requests []ScanRequest `json:"requests" binding:"required,min=1"`

	// Strategy forces a coordination policy. Empty lets the decision
	// engine choose.
	Strategy Strategy `json:"strategy,omitempty"`

	Mode Mode `json:"mode,omitempty"`

	Constraints Constraints `json:"constraints,omitempty"`

	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}
