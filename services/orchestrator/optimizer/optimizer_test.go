// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package optimizer

import (
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(timeMS, successRate float64) datatypes.PerformanceSnapshot {
	return datatypes.PerformanceSnapshot{
		Timestamp:       time.Now(),
		ExecutionTimeMS: timeMS,
		SuccessRate:     successRate,
	}
}

// feedDecline loads total observations where the last `window` run 25%
// slower than the window before them.
func feedDecline(o *Optimizer, ruleID string, total, window int) {
	for i := 0; i < total-window; i++ {
		o.Observe(ruleID, snapshot(1000, 0.95))
	}
	for i := 0; i < window; i++ {
		o.Observe(ruleID, snapshot(1250, 0.95))
	}
}

func TestMaybeAdapt_RequiresMinimumSamples(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 99, 10)

	assert.Nil(t, o.MaybeAdapt("rule-1"), "below minimum history no adaptation runs")
	assert.Nil(t, o.MaybeAdapt("never-observed"))
}

func TestMaybeAdapt_TriggersOnSlowdownWithRollback(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 110, 10)

	changes := o.MaybeAdapt("rule-1")
	require.NotEmpty(t, changes, "25%% slowdown over the recent window must trigger adaptation")

	applied := 0
	for _, ch := range changes {
		assert.NotEmpty(t, ch.Rollback, "every change carries a rollback plan")
		assert.Equal(t, ch.OldValue, ch.Rollback[ch.Parameter])
		if ch.Applied {
			applied++
			assert.Greater(t, ch.SafetyScore, 0.8)
		}
	}
	assert.Greater(t, applied, 0, "high-safety changes auto-apply")

	// Applied changes are visible in the rule's parameters.
	params := o.Params("rule-1")
	for _, ch := range changes {
		if ch.Applied {
			assert.Equal(t, ch.NewValue, params[ch.Parameter])
		}
	}
}

func TestMaybeAdapt_StablePerformanceNoTrigger(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	for i := 0; i < 150; i++ {
		o.Observe("rule-1", snapshot(1000, 0.95))
	}
	assert.Nil(t, o.MaybeAdapt("rule-1"))
}

func TestMaybeAdapt_AccuracyDeclineLowSafetyNotApplied(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	for i := 0; i < 100; i++ {
		o.Observe("rule-1", snapshot(1000, 0.95))
	}
	// Success rate drops past the 10% relative threshold; time stays flat.
	for i := 0; i < 10; i++ {
		o.Observe("rule-1", snapshot(1000, 0.70))
	}

	changes := o.MaybeAdapt("rule-1")
	require.NotEmpty(t, changes)
	for _, ch := range changes {
		assert.False(t, ch.Applied, "accuracy-risking changes stay recommendations")
	}
}

func TestRollback_RestoresParameters(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 120, 10)

	before := o.Params("rule-1")
	changes := o.MaybeAdapt("rule-1")

	var appliedID string
	for _, ch := range changes {
		if ch.Applied {
			appliedID = ch.ChangeID
			break
		}
	}
	require.NotEmpty(t, appliedID)

	require.NoError(t, o.Rollback(appliedID))
	after := o.Params("rule-1")
	for param, v := range before {
		if param == changesParam(changes, appliedID) {
			assert.Equal(t, v, after[param], "rollback restores the pre-change value")
		}
	}

	assert.ErrorIs(t, o.Rollback(appliedID), ErrUnknownChange, "double rollback is rejected")
	assert.ErrorIs(t, o.Rollback("nope"), ErrUnknownChange)
}

func changesParam(changes []datatypes.AppliedChange, id string) string {
	for _, ch := range changes {
		if ch.ChangeID == id {
			return ch.Parameter
		}
	}
	return ""
}

func TestFeedback_AdjustsSafetyWeight(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 120, 10)

	changes := o.MaybeAdapt("rule-1")
	var appliedID string
	for _, ch := range changes {
		if ch.Applied {
			appliedID = ch.ChangeID
			break
		}
	}
	require.NotEmpty(t, appliedID)

	base := o.SafetyWeight()
	require.NoError(t, o.Feedback(appliedID, false))
	assert.Less(t, o.SafetyWeight(), base, "refuted adaptations lower future safety")

	require.NoError(t, o.Feedback(appliedID, true))
	assert.Greater(t, o.SafetyWeight(), base-0.05, "confirmation nudges weight back up")

	assert.ErrorIs(t, o.Feedback("nope", true), ErrUnknownChange)
}

func TestObserve_HistoryBounded(t *testing.T) {
	o := New(Config{HistoryCapacity: 50, MinSamples: 10, Window: 5}, nil, nil)
	for i := 0; i < 500; i++ {
		o.Observe("rule-1", snapshot(float64(i), 0.9))
	}
	assert.Equal(t, 50, o.HistoryLen("rule-1"))
}

func TestPrioritizedRules_AnomalousFirst(t *testing.T) {
	o := New(Config{}, nil, nil)

	for i := 0; i < 30; i++ {
		o.Observe("steady", snapshot(1000, 0.9))
		o.Observe("spiky", snapshot(1000, 0.9))
	}
	// A large spike makes "spiky" anomalous on its next observation.
	o.Observe("spiky", snapshot(100000, 0.9))

	rules := o.PrioritizedRules()
	require.Len(t, rules, 2)
	assert.Equal(t, "spiky", rules[0])
}

func TestPropose_DoesNotMutateParameters(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 110, 10)

	before := o.Params("rule-1")
	proposals := o.Propose("rule-1")
	require.NotEmpty(t, proposals)

	for _, ch := range proposals {
		assert.False(t, ch.Applied, "proposals are never pre-applied")
		assert.NotEmpty(t, ch.Rollback)
	}
	assert.Equal(t, before, o.Params("rule-1"), "proposing must leave parameters untouched")
}

func TestApply_CommitsProposalAndRegistersRollback(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 110, 10)

	var eligible *datatypes.AppliedChange
	for _, ch := range o.Propose("rule-1") {
		if ch.SafetyScore > o.SafetyThreshold() {
			eligible = &ch
			break
		}
	}
	require.NotNil(t, eligible, "a slowdown-only decline yields a safe candidate")

	applied, err := o.Apply(*eligible)
	require.NoError(t, err)
	assert.True(t, applied.Applied)
	assert.Equal(t, eligible.NewValue, o.Params("rule-1")[eligible.Parameter])

	require.NoError(t, o.Rollback(applied.ChangeID))
	assert.Equal(t, eligible.OldValue, o.Params("rule-1")[eligible.Parameter])
}

func TestApply_RefusesUnsafeChange(t *testing.T) {
	o := New(Config{MinSamples: 100, Window: 10}, nil, nil)
	feedDecline(o, "rule-1", 110, 10)

	risky := datatypes.AppliedChange{
		ChangeID:    "c1",
		RuleID:      "rule-1",
		Parameter:   "batch_size",
		SafetyScore: 0.5,
	}
	_, err := o.Apply(risky)
	assert.ErrorIs(t, err, ErrChangeNotSafe)

	safeButUnknownRule := datatypes.AppliedChange{
		ChangeID:    "c2",
		RuleID:      "never-observed",
		Parameter:   "batch_size",
		SafetyScore: 0.99,
	}
	_, err = o.Apply(safeButUnknownRule)
	assert.ErrorIs(t, err, ErrUnknownChange)
}
