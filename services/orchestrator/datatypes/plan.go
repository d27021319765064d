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
// Complexity and Risk
// =============================================================================

// ComplexityLevel buckets a plan's complexity score.
type ComplexityLevel string

const (
	ComplexityVeryLow  ComplexityLevel = "very_low"
	ComplexityLow      ComplexityLevel = "low"
	ComplexityMedium   ComplexityLevel = "medium"
	ComplexityHigh     ComplexityLevel = "high"
	ComplexityVeryHigh ComplexityLevel = "very_high"
)

// RiskLevel is the qualitative risk classification attached to a plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment summarizes the risks identified while building a plan.
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors,omitempty"`
}

// ContingencyPlan pairs an identified risk with the action to take should
// it materialize during execution.
type ContingencyPlan struct {
	Risk   string `json:"risk"`
	Action string `json:"action"`
}

// RequestAnalysis is the deterministic complexity analysis of one
// orchestration request. The score arithmetic is a fixed contract; see
// orchestrator.AnalyzeRequests.
type RequestAnalysis struct {
	Score                int                 `json:"score"`
	Level                ComplexityLevel     `json:"level"`
	DataSourceCount      int                 `json:"data_source_count"`
	RuleCount            int                 `json:"rule_count"`
	TotalVolumeGB        float64             `json:"total_volume_gb"`
	ComplianceCount      int                 `json:"compliance_count"`
	RecommendedResources ResourceRequirement `json:"recommended_resources"`
}

// =============================================================================
// Execution Plans
// =============================================================================

// PlanStatus tracks a plan through its lifecycle. The plan itself is
// immutable after creation; status is bookkeeping stored alongside it.
type PlanStatus string

const (
	PlanCreated         PlanStatus = "created"
	PlanRunning         PlanStatus = "running"
	PlanCompleted       PlanStatus = "completed"
	PlanPartiallyFailed PlanStatus = "partially_failed"
	PlanFailed          PlanStatus = "failed"
	PlanStopped         PlanStatus = "stopped_critical_failure"
	PlanCancelled       PlanStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanCompleted, PlanPartiallyFailed, PlanFailed, PlanStopped, PlanCancelled:
		return true
	}
	return false
}

// ExecutionPlan is the full set of workflows, their order, and resource
// allocation for one orchestration request. Created once and immutable
// afterwards.
type ExecutionPlan struct {
	PlanID string `json:"plan_id"`

	Strategy Strategy `json:"strategy"`

	Workflows []Workflow `json:"workflows"`

	// ExecutionOrder lists workflow IDs in a topologically valid order
	// with respect to cross-workflow dependencies.
	ExecutionOrder []string `json:"execution_order"`

	// ResourceAllocation maps workflow ID to the requirement reserved for
	// it when execution starts.
	ResourceAllocation map[string]ResourceRequirement `json:"resource_allocation"`

	EstimatedDuration time.Duration `json:"estimated_duration"`

	// EstimatedCostUnits is the projected resource cost in CPU
	// core-seconds, checked against Constraints.MaxCostUnits.
	EstimatedCostUnits float64 `json:"estimated_cost_units"`

	Analysis RequestAnalysis `json:"analysis"`

	Risk RiskAssessment `json:"risk_assessment"`

	ContingencyPlans []ContingencyPlan `json:"contingency_plans,omitempty"`

	Constraints Constraints `json:"constraints,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// WorkflowByID returns the workflow with the given ID, if present.
func (p *ExecutionPlan) WorkflowByID(id string) (Workflow, bool) {
	for _, wf := range p.Workflows {
		if wf.WorkflowID == id {
			return wf, true
		}
	}
	return Workflow{}, false
}

// =============================================================================
// Reports
// =============================================================================

// PlanReport is the final outcome of executing a plan. It always carries
// machine-readable per-workflow status; partial failures are never
// swallowed.
type PlanReport struct {
	PlanID   string     `json:"plan_id"`
	Status   PlanStatus `json:"status"`
	Mode     Mode       `json:"mode"`
	Strategy Strategy   `json:"strategy"`

	Workflows map[string]*WorkflowExecutionRecord `json:"workflows"`

	// AppliedChanges lists adaptations applied during execution, each with
	// its rollback plan.
	AppliedChanges []AppliedChange `json:"applied_changes,omitempty"`

	// Recommendations lists adaptations that were proposed but not applied
	// (supervised/manual modes, or safety score below threshold).
	Recommendations []AppliedChange `json:"recommendations,omitempty"`

	// ResourcesConsumed is the total requirement that was committed over
	// the plan's lifetime. All of it is released by the time the report is
	// produced.
	ResourcesConsumed ResourceRequirement `json:"resources_consumed"`

	// Summary is the human-readable account of what succeeded, what
	// failed, what was adapted, and what resources were used.
	Summary string `json:"summary"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}
