// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring scan-rule
// orchestration. Metrics include:
//   - Plan counters (by terminal status)
//   - Workflow step duration histograms (by step type and outcome)
//   - Resource allocation failures
//   - Active workflow gauges
//   - Alert counters (by severity)
//   - Optimizer adaptation counters (applied vs rolled back)
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for orchestration metrics
const orchestrationSubsystem = "govern"

// OrchestrationMetrics holds all Prometheus metrics for scan orchestration.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring plan execution
// and resource usage. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type OrchestrationMetrics struct {
	// PlansTotal counts execution plans by terminal status.
	// Labels: status (completed, failed, partially_failed, cancelled, ...)
	PlansTotal *prometheus.CounterVec

	// StepDurationSeconds measures workflow step duration.
	// Labels: step_type (scan, validation, notification, aggregation),
	// outcome (completed, failed, skipped)
	StepDurationSeconds *prometheus.HistogramVec

	// AllocationFailuresTotal counts resource allocation rejections.
	AllocationFailuresTotal prometheus.Counter

	// ActiveWorkflows tracks currently running workflows.
	ActiveWorkflows prometheus.Gauge

	// AlertsTotal counts alerts raised by severity.
	// Labels: severity (low, medium, high, critical)
	AlertsTotal *prometheus.CounterVec

	// AdaptationsTotal counts optimizer parameter changes.
	// Labels: action (applied, declined, recommended)
	AdaptationsTotal *prometheus.CounterVec

	// SnapshotsIngestedTotal counts performance snapshots accepted.
	SnapshotsIngestedTotal prometheus.Counter

	// PoolResources tracks pool capacity accounting per resource kind.
	// Labels: kind (cpu, memory, network, storage),
	// state (used, reserved, total)
	PoolResources *prometheus.GaugeVec
}

// DefaultMetrics is the singleton instance of OrchestrationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *OrchestrationMetrics

// InitMetrics initializes the default metrics instance against the global
// Prometheus registry. Call once at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *OrchestrationMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates an OrchestrationMetrics registered against the given
// registerer. Tests pass a fresh prometheus.NewRegistry() to avoid
// duplicate-registration panics across cases.
func NewMetrics(reg prometheus.Registerer) *OrchestrationMetrics {
	factory := promauto.With(reg)

	return &OrchestrationMetrics{
		PlansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "plans_total",
				Help:      "Total execution plans by terminal status",
			},
			[]string{"status"},
		),

		StepDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "step_duration_seconds",
				Help:      "Workflow step duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
			},
			[]string{"step_type", "outcome"},
		),

		AllocationFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "allocation_failures_total",
				Help:      "Total resource allocation rejections",
			},
		),

		ActiveWorkflows: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "active_workflows",
				Help:      "Number of currently running workflows",
			},
		),

		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "alerts_total",
				Help:      "Total alerts raised by severity",
			},
			[]string{"severity"},
		),

		AdaptationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "adaptations_total",
				Help:      "Total optimizer parameter changes by action",
			},
			[]string{"action"},
		),

		SnapshotsIngestedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "snapshots_ingested_total",
				Help:      "Total performance snapshots accepted for ingestion",
			},
		),

		PoolResources: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestrationSubsystem,
				Name:      "pool_resources",
				Help:      "Resource pool accounting per kind and state",
			},
			[]string{"kind", "state"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordPlan records a plan reaching a terminal status.
func (m *OrchestrationMetrics) RecordPlan(status string) {
	m.PlansTotal.WithLabelValues(status).Inc()
}

// RecordStep records a finished workflow step.
func (m *OrchestrationMetrics) RecordStep(stepType, outcome string, seconds float64) {
	m.StepDurationSeconds.WithLabelValues(stepType, outcome).Observe(seconds)
}

// RecordAllocationFailure increments the allocation failure counter.
func (m *OrchestrationMetrics) RecordAllocationFailure() {
	m.AllocationFailuresTotal.Inc()
}

// WorkflowStarted increments the active workflow gauge.
func (m *OrchestrationMetrics) WorkflowStarted() {
	m.ActiveWorkflows.Inc()
}

// WorkflowEnded decrements the active workflow gauge.
func (m *OrchestrationMetrics) WorkflowEnded() {
	m.ActiveWorkflows.Dec()
}

// RecordAlert records a raised alert by severity.
func (m *OrchestrationMetrics) RecordAlert(severity string) {
	m.AlertsTotal.WithLabelValues(severity).Inc()
}

// RecordAdaptation records an optimizer action.
// Action is one of "applied", "declined", "recommended".
func (m *OrchestrationMetrics) RecordAdaptation(action string) {
	m.AdaptationsTotal.WithLabelValues(action).Inc()
}

// RecordSnapshot increments the snapshot ingestion counter.
func (m *OrchestrationMetrics) RecordSnapshot() {
	m.SnapshotsIngestedTotal.Inc()
}

// SetPoolResource updates the pool gauge for one kind/state pair.
func (m *OrchestrationMetrics) SetPoolResource(kind, state string, value float64) {
	m.PoolResources.WithLabelValues(kind, state).Set(value)
}
