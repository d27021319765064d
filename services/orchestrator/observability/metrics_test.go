// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *OrchestrationMetrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordPlanIncrementsByStatus(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPlan("completed")
	m.RecordPlan("completed")
	m.RecordPlan("failed")

	if got := testutil.ToFloat64(m.PlansTotal.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed plans = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PlansTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed plans = %v, want 1", got)
	}
}

func TestWorkflowGaugeBalances(t *testing.T) {
	m := newTestMetrics(t)

	m.WorkflowStarted()
	m.WorkflowStarted()
	m.WorkflowEnded()

	if got := testutil.ToFloat64(m.ActiveWorkflows); got != 1 {
		t.Errorf("active workflows = %v, want 1", got)
	}
}

func TestRecordAllocationFailure(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAllocationFailure()
	m.RecordAllocationFailure()

	if got := testutil.ToFloat64(m.AllocationFailuresTotal); got != 2 {
		t.Errorf("allocation failures = %v, want 2", got)
	}
}

func TestRecordAlertAndAdaptation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAlert("critical")
	m.RecordAdaptation("applied")
	m.RecordAdaptation("declined")

	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues("critical")); got != 1 {
		t.Errorf("critical alerts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AdaptationsTotal.WithLabelValues("declined")); got != 1 {
		t.Errorf("declined adaptations = %v, want 1", got)
	}
}

func TestStepDurationObserved(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordStep("scan", "completed", 2.5)
	m.RecordStep("scan", "completed", 7.0)

	count := testutil.CollectAndCount(m.StepDurationSeconds)
	if count != 1 {
		t.Errorf("expected 1 series, got %d", count)
	}
}

func TestSetPoolResource(t *testing.T) {
	m := newTestMetrics(t)

	m.SetPoolResource("cpu", "used", 3)
	m.SetPoolResource("cpu", "total", 16)
	m.SetPoolResource("cpu", "used", 5) // overwrite, gauges are not counters

	if got := testutil.ToFloat64(m.PoolResources.WithLabelValues("cpu", "used")); got != 5 {
		t.Errorf("cpu used = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.PoolResources.WithLabelValues("cpu", "total")); got != 16 {
		t.Errorf("cpu total = %v, want 16", got)
	}
}
