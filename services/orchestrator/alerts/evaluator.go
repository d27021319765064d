// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package alerts compares live metrics against thresholds and maintains
// severity-classified alerts with de-duplication.
//
// Alerts are observability signals: they never propagate as errors into
// orchestration control flow. Re-breaching an unresolved alert updates it
// in place instead of creating a duplicate, which keeps alert storms out
// of the active set.
package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/google/uuid"
)

// Metric names with default thresholds.
const (
	MetricCPUUtilization = "cpu_utilization"
	MetricMemoryUsage    = "memory_usage"
	MetricErrorRate      = "error_rate"
	MetricQueueSize      = "queue_size"
	MetricResponseTime   = "response_time"
)

// Thresholds is the metric → threshold table. Values use the metric's own
// unit: percent for cpu/memory/error rate, entries for queue size,
// milliseconds for response time.
type Thresholds map[string]float64

// DefaultThresholds returns the standard operations table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MetricCPUUtilization: 85,
		MetricMemoryUsage:    90,
		MetricErrorRate:      5,
		MetricQueueSize:      1000,
		MetricResponseTime:   30000,
	}
}

// severityFor scales severity with the breach ratio current/threshold.
func severityFor(ratio float64) datatypes.AlertSeverity {
	switch {
	case ratio >= 2.0:
		return datatypes.SeverityCritical
	case ratio >= 1.5:
		return datatypes.SeverityHigh
	case ratio >= 1.2:
		return datatypes.SeverityMedium
	default:
		return datatypes.SeverityLow
	}
}

// remediationFor maps a metric to its recommended operator action.
func remediationFor(metric string) string {
	switch metric {
	case MetricCPUUtilization:
		return "reduce scan parallelism or add compute capacity"
	case MetricMemoryUsage:
		return "lower batch sizes or add memory capacity"
	case MetricErrorRate:
		return "inspect failing rules and data source connectivity"
	case MetricQueueSize:
		return "throttle submissions or scale out workers"
	case MetricResponseTime:
		return "check data source latency and step timeouts"
	}
	return "investigate metric source"
}

// maxResolvedHistory bounds the resolved-alert buffer; the oldest entries
// fall off first.
const maxResolvedHistory = 256

// Evaluator maintains the active alert set and a bounded history of
// resolved alerts.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Evaluator struct {
	mu         sync.Mutex
	thresholds Thresholds
	active     map[string]*datatypes.Alert // keyed by metric type
	resolved   []datatypes.Alert           // oldest first, capped
	logger     *slog.Logger
}

// New creates an evaluator. Nil thresholds use DefaultThresholds; a nil
// logger falls back to slog.Default().
func New(thresholds Thresholds, logger *slog.Logger) *Evaluator {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		thresholds: thresholds,
		active:     make(map[string]*datatypes.Alert),
		logger:     logger,
	}
}

// SetThresholds replaces the threshold table (hot reload path).
func (e *Evaluator) SetThresholds(t Thresholds) {
	if t == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = t
	e.logger.Info("alert thresholds replaced", "metrics", len(t))
}

// Evaluate checks one snapshot against every configured threshold and
// returns the alerts it raised or updated. Metrics back under threshold
// auto-resolve their active alert.
func (e *Evaluator) Evaluate(snapshot datatypes.PerformanceSnapshot) []datatypes.Alert {
	values := map[string]float64{
		MetricCPUUtilization: snapshot.CPUUsage,
		MetricMemoryUsage:    snapshot.MemoryUsage,
		MetricErrorRate:      snapshot.ErrorRate,
		MetricQueueSize:      snapshot.QueueLength,
		MetricResponseTime:   snapshot.ResponseTimeMS,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var raised []datatypes.Alert
	now := time.Now()
	for metric, threshold := range e.thresholds {
		value, tracked := values[metric]
		if !tracked {
			continue
		}

		if threshold <= 0 || value <= threshold {
			e.autoResolve(metric, now)
			continue
		}

		ratio := value / threshold
		if existing, ok := e.active[metric]; ok {
			// De-duplication: update the live alert in place.
			existing.CurrentValue = value
			existing.Severity = severityFor(ratio)
			existing.UpdatedAt = now
			raised = append(raised, *existing)
			continue
		}

		alert := &datatypes.Alert{
			ID:           uuid.NewString(),
			Severity:     severityFor(ratio),
			MetricType:   metric,
			Threshold:    threshold,
			CurrentValue: value,
			Message: fmt.Sprintf("%s at %.2f exceeds threshold %.2f; %s",
				metric, value, threshold, remediationFor(metric)),
			CreatedAt: now,
			UpdatedAt: now,
		}
		e.active[metric] = alert
		raised = append(raised, *alert)
		e.logger.Warn("alert raised",
			"metric", metric, "severity", alert.Severity,
			"value", value, "threshold", threshold)
	}
	return raised
}

// autoResolve closes the active alert for a metric that returned under
// threshold. Caller holds the lock.
func (e *Evaluator) autoResolve(metric string, now time.Time) {
	alert, ok := e.active[metric]
	if !ok {
		return
	}
	alert.Resolved = true
	alert.ResolvedAt = now
	alert.UpdatedAt = now
	e.resolved = append(e.resolved, *alert)
	if overflow := len(e.resolved) - maxResolvedHistory; overflow > 0 {
		e.resolved = append(e.resolved[:0:0], e.resolved[overflow:]...)
	}
	delete(e.active, metric)
	e.logger.Info("alert auto-resolved", "metric", metric, "alert_id", alert.ID)
}

// Resolve marks an active alert resolved by ID (operator action).
// Resolving an unknown or already-resolved alert returns false.
func (e *Evaluator) Resolve(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for metric, alert := range e.active {
		if alert.ID == alertID {
			e.autoResolve(metric, time.Now())
			return true
		}
	}
	return false
}

// Resolved returns a copy of the resolved-alert history, oldest first.
// The history is capped; older entries fall off.
func (e *Evaluator) Resolved() []datatypes.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]datatypes.Alert, len(e.resolved))
	copy(out, e.resolved)
	return out
}

// Active returns a copy of the unresolved alerts.
func (e *Evaluator) Active() []datatypes.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]datatypes.Alert, 0, len(e.active))
	for _, alert := range e.active {
		out = append(out, *alert)
	}
	return out
}
