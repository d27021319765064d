// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package predictor

import (
	"context"
	"testing"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearHistory builds n records where execution time is exactly
// 100*volume + 50 and accuracy is constant.
func linearHistory(n int) []datatypes.ExecutionRecord {
	records := make([]datatypes.ExecutionRecord, n)
	for i := range records {
		volume := float64(i + 1)
		records[i] = datatypes.ExecutionRecord{
			RuleID:   "rule-1",
			Features: map[string]float64{"volume_gb": volume},
			Observed: datatypes.Prediction{
				ExecutionTimeMS: 100*volume + 50,
				AccuracyScore:   0.9,
				Throughput:      10 * volume,
			},
		}
	}
	return records
}

func TestTrain_InsufficientSamplesIsNotAnError(t *testing.T) {
	p := NewLinearPredictor(nil)

	result, err := p.Train(context.Background(), linearHistory(MinTrainingSamples-1))
	require.NoError(t, err, "too few samples must degrade, not fail")
	assert.False(t, result.Trained)
	assert.Equal(t, MinTrainingSamples-1, result.SampleCount)

	// Untrained prediction serves neutral defaults.
	pred, err := p.Predict(context.Background(), map[string]float64{"volume_gb": 5})
	require.NoError(t, err)
	assert.Equal(t, NeutralPrediction(), pred)
}

func TestTrain_FitsLinearRelation(t *testing.T) {
	p := NewLinearPredictor(nil)

	result, err := p.Train(context.Background(), linearHistory(50))
	require.NoError(t, err)
	require.True(t, result.Trained)
	assert.Equal(t, 50, result.SampleCount)

	// A perfectly linear target fits with quality ~1.
	assert.InDelta(t, 1.0, result.Quality[TargetExecutionTimeMS], 1e-6)
	// A constant target is predicted exactly.
	assert.InDelta(t, 1.0, result.Quality[TargetAccuracyScore], 1e-6)

	pred, err := p.Predict(context.Background(), map[string]float64{"volume_gb": 20})
	require.NoError(t, err)
	assert.InDelta(t, 2050, pred.ExecutionTimeMS, 1e-6)
	assert.InDelta(t, 0.9, pred.AccuracyScore, 1e-6)
}

func TestPredict_Deterministic(t *testing.T) {
	p := NewLinearPredictor(nil)
	_, err := p.Train(context.Background(), linearHistory(30))
	require.NoError(t, err)

	features := map[string]float64{"volume_gb": 7, "rule_count": 3}
	first, err := p.Predict(context.Background(), features)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := p.Predict(context.Background(), features)
		require.NoError(t, err)
		assert.Equal(t, first, again, "prediction must be reproducible")
	}
}

func TestPredict_OutputsClamped(t *testing.T) {
	p := NewLinearPredictor(nil)

	// Declining accuracy extrapolates below zero for large inputs; outputs
	// must stay in range.
	records := make([]datatypes.ExecutionRecord, 20)
	for i := range records {
		x := float64(i + 1)
		records[i] = datatypes.ExecutionRecord{
			Features: map[string]float64{"x": x},
			Observed: datatypes.Prediction{
				AccuracyScore:   1 - 0.1*x,
				ExecutionTimeMS: 1000 - 100*x,
			},
		}
	}
	_, err := p.Train(context.Background(), records)
	require.NoError(t, err)

	pred, err := p.Predict(context.Background(), map[string]float64{"x": 100})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pred.AccuracyScore, 0.0)
	assert.LessOrEqual(t, pred.AccuracyScore, 1.0)
	assert.GreaterOrEqual(t, pred.ExecutionTimeMS, 0.0)
	assert.GreaterOrEqual(t, pred.FalsePositiveRate, 0.0)
	assert.LessOrEqual(t, pred.FalsePositiveRate, 1.0)
}
