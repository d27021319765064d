// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest is the streaming entry point for performance snapshots.
//
// The connector layer performing the actual scan I/O feeds snapshots here;
// the ingestor fans each one out to the alert evaluator, the adaptive
// optimizer's history buffer, and an optional time-series sink. Ingestion
// is rate-limited so a misbehaving producer cannot starve the scheduler.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianGovern/pkg/validation"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/alerts"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/optimizer"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"golang.org/x/time/rate"
)

// ErrInvalidSnapshot marks snapshots rejected before ingestion, e.g. for
// malformed identifiers.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// SnapshotSink receives every accepted snapshot, e.g. for long-term
// time-series storage. Implementations must tolerate bursts.
type SnapshotSink interface {
	Write(ctx context.Context, snapshot datatypes.PerformanceSnapshot) error
}

// NopSink discards snapshots.
type NopSink struct{}

// Write implements SnapshotSink.
func (NopSink) Write(context.Context, datatypes.PerformanceSnapshot) error { return nil }

// MemorySink buffers snapshots, for tests and local inspection.
type MemorySink struct {
	mu        sync.Mutex
	snapshots []datatypes.PerformanceSnapshot
}

// Write implements SnapshotSink.
func (m *MemorySink) Write(_ context.Context, s datatypes.PerformanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

// Snapshots returns a copy of everything written so far.
func (m *MemorySink) Snapshots() []datatypes.PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]datatypes.PerformanceSnapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// InfluxSink writes snapshots as line-protocol points.
type InfluxSink struct {
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink creates a sink writing to the given org/bucket.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{writeAPI: client.WriteAPIBlocking(org, bucket)}
}

// Write implements SnapshotSink.
func (s *InfluxSink) Write(ctx context.Context, snap datatypes.PerformanceSnapshot) error {
	point := influxdb2.NewPoint(
		"scan_performance",
		map[string]string{
			"rule_id":        snap.RuleID,
			"data_source_id": snap.DataSourceID,
		},
		map[string]interface{}{
			"execution_time_ms": snap.ExecutionTimeMS,
			"cpu_usage":         snap.CPUUsage,
			"memory_usage":      snap.MemoryUsage,
			"throughput":        snap.Throughput,
			"success_rate":      snap.SuccessRate,
			"error_rate":        snap.ErrorRate,
			"queue_length":      snap.QueueLength,
			"concurrent_scans":  snap.ConcurrentScans,
		},
		snap.Timestamp,
	)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("writing snapshot point: %w", err)
	}
	return nil
}

// =============================================================================
// Ingestor
// =============================================================================

// Ingestor accepts snapshots and fans them out.
//
// # Thread Safety
//
// Safe for concurrent producers.
type Ingestor struct {
	evaluator *alerts.Evaluator
	optimizer *optimizer.Optimizer
	sink      SnapshotSink
	limiter   *rate.Limiter
	metrics   *observability.OrchestrationMetrics
	logger    *slog.Logger
}

// New creates an ingestor. ratePerSecond <= 0 disables limiting; a nil
// sink discards; nil metrics skip instrumentation; a nil logger falls
// back to slog.Default().
func New(evaluator *alerts.Evaluator, opt *optimizer.Optimizer, sink SnapshotSink,
	ratePerSecond float64, metrics *observability.OrchestrationMetrics, logger *slog.Logger) *Ingestor {

	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond))
	}
	return &Ingestor{
		evaluator: evaluator,
		optimizer: opt,
		sink:      sink,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Ingest accepts one snapshot, blocking briefly under rate pressure. It
// returns the alerts the snapshot raised. Sink failures are logged and do
// not fail ingestion: persistence of metrics is best effort, alerting and
// adaptation are not.
func (i *Ingestor) Ingest(ctx context.Context, snapshot datatypes.PerformanceSnapshot) ([]datatypes.Alert, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ingestion rate limit: %w", err)
		}
	}

	// IDs become time-series tags, so they are validated before any
	// downstream component sees the snapshot.
	if snapshot.RuleID != "" {
		if err := validation.ValidateID(snapshot.RuleID); err != nil {
			return nil, fmt.Errorf("%w: rule id: %v", ErrInvalidSnapshot, err)
		}
	}
	if snapshot.DataSourceID != "" {
		if err := validation.ValidateID(snapshot.DataSourceID); err != nil {
			return nil, fmt.Errorf("%w: data source id: %v", ErrInvalidSnapshot, err)
		}
	}

	if snapshot.RuleID != "" && i.optimizer != nil {
		i.optimizer.Observe(snapshot.RuleID, snapshot)
	}

	var raised []datatypes.Alert
	if i.evaluator != nil {
		raised = i.evaluator.Evaluate(snapshot)
	}

	if i.metrics != nil {
		i.metrics.RecordSnapshot()
		for _, a := range raised {
			i.metrics.RecordAlert(string(a.Severity))
		}
	}

	if err := i.sink.Write(ctx, snapshot); err != nil {
		i.logger.Warn("snapshot sink write failed", "error", err)
	}
	return raised, nil
}

// IngestBatch accepts a batch in order and returns all raised alerts.
func (i *Ingestor) IngestBatch(ctx context.Context, snapshots []datatypes.PerformanceSnapshot) ([]datatypes.Alert, error) {
	var all []datatypes.Alert
	for _, snap := range snapshots {
		raised, err := i.Ingest(ctx, snap)
		if err != nil {
			return all, err
		}
		all = append(all, raised...)
	}
	return all, nil
}
