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
// Steps
// =============================================================================

// StepType classifies the work a step performs.
type StepType string

const (
	StepScan         StepType = "scan"
	StepValidation   StepType = "validation"
	StepNotification StepType = "notification"
	StepAggregation  StepType = "aggregation"
)

// Step is an atomic unit of work inside a workflow. The dependency relation
// among a workflow's steps must be acyclic; cycles are rejected when the
// plan is created.
type Step struct {
	StepID string   `json:"step_id"`
	Type   StepType `json:"type"`

	// Dependencies names steps that must complete before this step starts.
	Dependencies []string `json:"dependencies,omitempty"`

	// Required marks the step as mandatory: its failure fails the owning
	// workflow. Non-required step failures are recorded and execution
	// continues.
	Required bool `json:"required"`

	// Timeout bounds one execution attempt. Zero uses the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxAttempts caps retries after timeouts. Logic failures on required
	// steps are never retried. Zero uses the engine default.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// RuleID is the scan rule this step evaluates, if any.
	RuleID string `json:"rule_id,omitempty"`
}

// StepStatus is the per-step state machine:
// pending → running → {completed | failed}.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"

	// StepSkipped marks a step that could never start because a
	// dependency failed or the workflow short-circuited.
	StepSkipped StepStatus = "skipped"
)

// FailureReason distinguishes why a step failed so callers can apply
// different retry policy to each kind.
type FailureReason string

const (
	FailureNone      FailureReason = ""
	FailureLogic     FailureReason = "logic"
	FailureTimeout   FailureReason = "timeout"
	FailureCancelled FailureReason = "cancelled"
)

// ResourceSample is a periodic reading of resource usage while a step runs.
type ResourceSample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
}

// StepResult records one step's outcome inside a workflow execution record.
type StepResult struct {
	StepID      string        `json:"step_id"`
	Status      StepStatus    `json:"status"`
	Attempts    int           `json:"attempts"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Reason      FailureReason `json:"failure_reason,omitempty"`
	Error       string        `json:"error,omitempty"`

	// Samples is the resource usage series collected while the step ran.
	Samples []ResourceSample `json:"samples,omitempty"`
}

// =============================================================================
// Workflows
// =============================================================================

// Workflow is a DAG of steps executed to fulfil one scan request.
type Workflow struct {
	WorkflowID   string   `json:"workflow_id"`
	Name         string   `json:"name"`
	DataSourceID string   `json:"data_source_id"`
	Steps        []Step   `json:"steps"`
	Priority     Priority `json:"priority"`

	// CriticalPath marks the workflow so that its required-step failure
	// stops the whole plan early.
	CriticalPath bool `json:"critical_path,omitempty"`

	// DependsOn names workflows that must complete before this one starts.
	DependsOn []string `json:"depends_on,omitempty"`
}

// WorkflowStatus is the workflow-level state machine. Terminal states are
// completed, failed and cancelled.
type WorkflowStatus string

const (
	WorkflowQueued    WorkflowStatus = "queued"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed || s == WorkflowCancelled
}

// WorkflowExecutionRecord is created when a workflow starts and mutated only
// by the executing engine. Once Status is terminal the record is frozen.
type WorkflowExecutionRecord struct {
	WorkflowID     string                 `json:"workflow_id"`
	Status         WorkflowStatus         `json:"status"`
	StepsCompleted int                    `json:"steps_completed"`
	StepsFailed    int                    `json:"steps_failed"`
	StepResults    map[string]*StepResult `json:"step_results"`
	Errors         []string               `json:"errors,omitempty"`
	StartedAt      time.Time              `json:"started_at,omitempty"`
	CompletedAt    time.Time              `json:"completed_at,omitempty"`
}
