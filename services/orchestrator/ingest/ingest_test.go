// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/alerts"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Write(context.Context, datatypes.PerformanceSnapshot) error {
	return errors.New("sink down")
}

func snapshotAt(cpu float64) datatypes.PerformanceSnapshot {
	return datatypes.PerformanceSnapshot{
		Timestamp:       time.Now(),
		RuleID:          "rule-1",
		DataSourceID:    "ds-1",
		ExecutionTimeMS: 1200,
		CPUUsage:        cpu,
	}
}

func TestIngestFansOutToEvaluatorOptimizerAndSink(t *testing.T) {
	evaluator := alerts.New(alerts.DefaultThresholds(), nil)
	opt := optimizer.New(optimizer.Config{}, nil, nil)
	sink := &MemorySink{}
	ing := New(evaluator, opt, sink, 0, nil, nil)

	raised, err := ing.Ingest(context.Background(), snapshotAt(95))
	require.NoError(t, err)

	require.Len(t, raised, 1)
	assert.Equal(t, alerts.MetricCPUUtilization, raised[0].MetricType)
	assert.Equal(t, 1, opt.HistoryLen("rule-1"))
	assert.Len(t, sink.Snapshots(), 1)
}

func TestIngestNoAlertUnderThreshold(t *testing.T) {
	evaluator := alerts.New(alerts.DefaultThresholds(), nil)
	ing := New(evaluator, nil, nil, 0, nil, nil)

	raised, err := ing.Ingest(context.Background(), snapshotAt(40))
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestIngestSinkFailureIsNotFatal(t *testing.T) {
	evaluator := alerts.New(alerts.DefaultThresholds(), nil)
	ing := New(evaluator, nil, failingSink{}, 0, nil, nil)

	raised, err := ing.Ingest(context.Background(), snapshotAt(95))
	require.NoError(t, err)
	assert.Len(t, raised, 1)
}

func TestIngestRateLimitRespectsContext(t *testing.T) {
	ing := New(nil, nil, nil, 1, nil, nil)

	// Burn the single burst token, then cancel before the next refill.
	_, err := ing.Ingest(context.Background(), snapshotAt(10))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ing.Ingest(ctx, snapshotAt(10))
	require.Error(t, err)
}

func TestIngestBatchCollectsAlerts(t *testing.T) {
	evaluator := alerts.New(alerts.DefaultThresholds(), nil)
	opt := optimizer.New(optimizer.Config{}, nil, nil)
	ing := New(evaluator, opt, nil, 0, nil, nil)

	batch := []datatypes.PerformanceSnapshot{
		snapshotAt(40),
		snapshotAt(95),
		snapshotAt(40), // auto-resolves the cpu alert
	}
	raised, err := ing.IngestBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, raised, 1)
	assert.Empty(t, evaluator.Active())
	assert.Equal(t, 3, opt.HistoryLen("rule-1"))
}

func TestIngestRejectsMalformedIdentifiers(t *testing.T) {
	evaluator := alerts.New(alerts.DefaultThresholds(), nil)
	ing := New(evaluator, nil, nil, 0, nil, nil)

	snap := snapshotAt(40)
	snap.RuleID = `r1") |> drop()`
	_, err := ing.Ingest(context.Background(), snap)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	assert.Contains(t, err.Error(), "rule id")

	snap = snapshotAt(40)
	snap.DataSourceID = "ds 1; --"
	_, err = ing.Ingest(context.Background(), snap)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	assert.Contains(t, err.Error(), "data source id")

	// Nothing reached the evaluator
	assert.Empty(t, evaluator.Active())
}
