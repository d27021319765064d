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
// Performance Snapshots
// =============================================================================

// PerformanceSnapshot is a timestamped metrics vector emitted by the layer
// that performs the actual scan I/O. Snapshots are append-only; the core
// consumes them for live alerting and for trend/adaptation analysis.
type PerformanceSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Exactly one of RuleID/DataSourceID/ScanID keys the series; the
	// others are optional context.
	RuleID       string `json:"rule_id,omitempty"`
	DataSourceID string `json:"data_source_id,omitempty"`
	ScanID       string `json:"scan_id,omitempty"`

	ExecutionTimeMS float64 `json:"execution_time_ms"`
	CPUUsage        float64 `json:"cpu_usage"`
	MemoryUsage     float64 `json:"memory_usage"`
	Throughput      float64 `json:"throughput"`
	SuccessRate     float64 `json:"success_rate"`
	ErrorRate       float64 `json:"error_rate"`
	QueueLength     float64 `json:"queue_length"`
	ConcurrentScans float64 `json:"concurrent_scans"`
	ResponseTimeMS  float64 `json:"response_time_ms"`
}

// ExecutionRecord is one historical observation used to train the
// performance predictor: a feature vector plus observed outcomes.
type ExecutionRecord struct {
	RuleID   string             `json:"rule_id"`
	Features map[string]float64 `json:"features"`
	Observed Prediction         `json:"observed"`
}

// Prediction is the predictor's output vector. All fields are clamped to
// their valid ranges: rates and scores in [0,1], times and usage >= 0.
type Prediction struct {
	ExecutionTimeMS   float64             `json:"execution_time_ms"`
	AccuracyScore     float64             `json:"accuracy_score"`
	FalsePositiveRate float64             `json:"false_positive_rate"`
	ResourceUsage     ResourceRequirement `json:"resource_usage"`
	Throughput        float64             `json:"throughput"`
	CostScore         float64             `json:"cost_score"`
	CoverageScore     float64             `json:"coverage_score"`
	ComplexityScore   float64             `json:"complexity_score"`
}

// =============================================================================
// Optimization
// =============================================================================

// OptimizationCandidate is one proposed parameter configuration, scored by
// the optimizer. Candidates are never mutated; superseded candidates are
// discarded, not edited.
type OptimizationCandidate struct {
	Configuration       map[string]float64 `json:"configuration"`
	PredictedMetrics    Prediction         `json:"predicted_metrics"`
	Confidence          float64            `json:"confidence"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	SafetyScore         float64            `json:"safety_score"`
	OptimizationScore   float64            `json:"optimization_score"`
}

// AppliedChange records one parameter change the optimizer applied (or
// recommended), together with the rollback plan holding pre-change values.
type AppliedChange struct {
	ChangeID            string             `json:"change_id"`
	RuleID              string             `json:"rule_id"`
	Parameter           string             `json:"parameter"`
	OldValue            float64            `json:"old_value"`
	NewValue            float64            `json:"new_value"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	SafetyScore         float64            `json:"safety_score"`
	Applied             bool               `json:"applied"`
	AppliedAt           time.Time          `json:"applied_at,omitempty"`
	Rollback            map[string]float64 `json:"rollback"`
}

// =============================================================================
// Alerts
// =============================================================================

// AlertSeverity classifies how far a metric breached its threshold.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
	SeverityInfo     AlertSeverity = "info"
)

// Alert is an operational threshold-breach notification. Alerts are
// observability signals, never control-flow errors. An unresolved alert for
// the same metric is updated in place rather than duplicated.
type Alert struct {
	ID           string        `json:"id"`
	Severity     AlertSeverity `json:"severity"`
	MetricType   string        `json:"metric_type"`
	Threshold    float64       `json:"threshold"`
	CurrentValue float64       `json:"current_value"`
	Message      string        `json:"message"`
	Resolved     bool          `json:"resolved"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ResolvedAt   time.Time     `json:"resolved_at,omitempty"`
}
