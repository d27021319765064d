// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package predictor estimates execution time, accuracy and resource usage
// for a scan rule from a workload feature vector.
//
// The default implementation is a deterministic per-target least-squares
// fit over a composite workload index. It is intentionally simple: the
// orchestration core treats prediction as a pluggable capability, and any
// model satisfying the Predictor interface can be substituted.
//
// Training is CPU-bound and runs inside a bounded errgroup so it never
// blocks the scheduling loop.
package predictor

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"golang.org/x/sync/errgroup"
)

// MinTrainingSamples is the minimum history size for a usable model. Below
// it Train reports NotTrained and Predict serves neutral defaults.
const MinTrainingSamples = 10

// Prediction targets learned from history.
const (
	TargetExecutionTimeMS   = "execution_time_ms"
	TargetAccuracyScore     = "accuracy_score"
	TargetFalsePositiveRate = "false_positive_rate"
	TargetThroughput        = "throughput"
	TargetCPUCores          = "cpu_cores"
	TargetMemoryMB          = "memory_mb"
	TargetCostScore         = "cost_score"
	TargetCoverageScore     = "coverage_score"
	TargetComplexityScore   = "complexity_score"
)

// TrainResult reports the outcome of a training run.
type TrainResult struct {
	// Trained is false when the sample count was below MinTrainingSamples.
	// That is a degraded-but-expected outcome, not an error.
	Trained bool `json:"trained"`

	SampleCount int `json:"sample_count"`

	// Quality maps each target to its model fit score in [0,1]
	// (coefficient of determination, clamped).
	Quality map[string]float64 `json:"quality,omitempty"`
}

// Predictor is the capability interface the orchestration core depends on.
type Predictor interface {
	// Train fits the model from execution history. Too few samples is not
	// an error: the result carries Trained=false and prediction falls back
	// to neutral defaults.
	Train(ctx context.Context, history []datatypes.ExecutionRecord) (TrainResult, error)

	// Predict estimates outcomes for a feature vector. Outputs are clamped
	// to their valid ranges. Given identical model state and features the
	// result is reproducible.
	Predict(ctx context.Context, features map[string]float64) (datatypes.Prediction, error)
}

// =============================================================================
// Linear Predictor
// =============================================================================

// linearModel is a univariate fit of one target against the composite
// workload index.
type linearModel struct {
	slope     float64
	intercept float64
	quality   float64
}

// LinearPredictor fits one linear model per target against a composite
// workload index (the sum of feature values). Deterministic: no randomness
// in training or prediction.
//
// # Thread Safety
//
// Safe for concurrent use. Train replaces the model set atomically under a
// write lock; Predict reads under a read lock.
type LinearPredictor struct {
	mu      sync.RWMutex
	models  map[string]linearModel
	trained bool
	logger  *slog.Logger
}

// NewLinearPredictor creates an untrained predictor.
func NewLinearPredictor(logger *slog.Logger) *LinearPredictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinearPredictor{models: make(map[string]linearModel), logger: logger}
}

// compositeIndex folds a feature vector into one scalar. Feature order must
// not matter, so keys are sorted before summation (floating point addition
// is not associative).
func compositeIndex(features map[string]float64) float64 {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := 0.0
	for _, k := range keys {
		sum += features[k]
	}
	return sum
}

// observedTarget extracts one target's observed value from a record.
func observedTarget(rec datatypes.ExecutionRecord, target string) float64 {
	switch target {
	case TargetExecutionTimeMS:
		return rec.Observed.ExecutionTimeMS
	case TargetAccuracyScore:
		return rec.Observed.AccuracyScore
	case TargetFalsePositiveRate:
		return rec.Observed.FalsePositiveRate
	case TargetThroughput:
		return rec.Observed.Throughput
	case TargetCPUCores:
		return rec.Observed.ResourceUsage.CPUCores
	case TargetMemoryMB:
		return rec.Observed.ResourceUsage.MemoryMB
	case TargetCostScore:
		return rec.Observed.CostScore
	case TargetCoverageScore:
		return rec.Observed.CoverageScore
	case TargetComplexityScore:
		return rec.Observed.ComplexityScore
	}
	return 0
}

func allTargets() []string {
	return []string{
		TargetExecutionTimeMS, TargetAccuracyScore, TargetFalsePositiveRate,
		TargetThroughput, TargetCPUCores, TargetMemoryMB,
		TargetCostScore, TargetCoverageScore, TargetComplexityScore,
	}
}

// Train fits per-target models in parallel, bounded by GOMAXPROCS.
func (p *LinearPredictor) Train(ctx context.Context, history []datatypes.ExecutionRecord) (TrainResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(history) < MinTrainingSamples {
		p.logger.Info("predictor not trained: insufficient samples",
			"samples", len(history), "min", MinTrainingSamples)
		return TrainResult{Trained: false, SampleCount: len(history)}, nil
	}

	xs := make([]float64, len(history))
	for i, rec := range history {
		xs[i] = compositeIndex(rec.Features)
	}

	targets := allTargets()
	models := make([]linearModel, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ys := make([]float64, len(history))
			for j, rec := range history {
				ys[j] = observedTarget(rec, target)
			}
			models[i] = fit(xs, ys)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TrainResult{}, err
	}

	result := TrainResult{
		Trained:     true,
		SampleCount: len(history),
		Quality:     make(map[string]float64, len(targets)),
	}

	p.mu.Lock()
	p.models = make(map[string]linearModel, len(targets))
	for i, target := range targets {
		p.models[target] = models[i]
		result.Quality[target] = models[i].quality
	}
	p.trained = true
	p.mu.Unlock()

	p.logger.Info("predictor trained", "samples", len(history))
	return result, nil
}

// fit computes the least-squares line and its clamped R².
func fit(xs, ys []float64) linearModel {
	meanX, meanY := mean(xs), mean(ys)

	varX, cov := 0.0, 0.0
	for i := range xs {
		dx := xs[i] - meanX
		varX += dx * dx
		cov += dx * (ys[i] - meanY)
	}

	m := linearModel{intercept: meanY}
	if varX > 0 {
		m.slope = cov / varX
		m.intercept = meanY - m.slope*meanX
	}

	// R² against the mean model.
	ssTot, ssRes := 0.0, 0.0
	for i := range ys {
		pred := m.intercept + m.slope*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	switch {
	case ssTot == 0:
		// Constant target predicted exactly.
		m.quality = 1
	default:
		m.quality = clamp01(1 - ssRes/ssTot)
	}
	return m
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// Predict estimates outcomes for a feature vector, clamped to valid
// ranges. An untrained predictor returns neutral defaults.
func (p *LinearPredictor) Predict(ctx context.Context, features map[string]float64) (datatypes.Prediction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return NeutralPrediction(), nil
	}

	x := compositeIndex(features)
	est := func(target string) float64 {
		m := p.models[target]
		return m.intercept + m.slope*x
	}

	return datatypes.Prediction{
		ExecutionTimeMS:   clampNonNeg(est(TargetExecutionTimeMS)),
		AccuracyScore:     clamp01(est(TargetAccuracyScore)),
		FalsePositiveRate: clamp01(est(TargetFalsePositiveRate)),
		Throughput:        clampNonNeg(est(TargetThroughput)),
		ResourceUsage: datatypes.ResourceRequirement{
			CPUCores: clampNonNeg(est(TargetCPUCores)),
			MemoryMB: clampNonNeg(est(TargetMemoryMB)),
		},
		CostScore:       clamp01(est(TargetCostScore)),
		CoverageScore:   clamp01(est(TargetCoverageScore)),
		ComplexityScore: clamp01(est(TargetComplexityScore)),
	}, nil
}

// NeutralPrediction is the default estimate used when the model is not
// trained: mid-range scores, modest resource needs.
func NeutralPrediction() datatypes.Prediction {
	return datatypes.Prediction{
		ExecutionTimeMS:   1000,
		AccuracyScore:     0.5,
		FalsePositiveRate: 0.5,
		Throughput:        0,
		ResourceUsage:     datatypes.ResourceRequirement{CPUCores: 1, MemoryMB: 512},
		CostScore:         0.5,
		CoverageScore:     0.5,
		ComplexityScore:   0.5,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampNonNeg(v float64) float64 {
	return math.Max(0, v)
}
