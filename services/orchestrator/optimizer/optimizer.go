// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package optimizer monitors rolling per-rule performance history, detects
// degradation, and proposes parameter changes with safety scores and
// rollback plans.
//
// The optimizer owns its history buffers: bounded rings appended to by the
// metrics ingestion path and read by the adaptation path. Only changes
// whose safety score clears a high-confidence threshold are applied; the
// rest are surfaced as recommendations.
package optimizer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/google/uuid"
)

// ErrUnknownChange is returned when rolling back or rating a change the
// optimizer never applied.
var ErrUnknownChange = errors.New("unknown change")

// ErrChangeNotSafe is returned by Apply for a change whose safety score
// does not clear the configured threshold.
var ErrChangeNotSafe = errors.New("change below safety threshold")

// =============================================================================
// Configuration
// =============================================================================

// Config tunes the optimizer's detection and safety behavior.
type Config struct {
	// HistoryCapacity bounds the per-rule ring buffer. Default: 1000.
	HistoryCapacity int

	// MinSamples gates adaptation: rules with fewer observations are left
	// alone. Default: 100.
	MinSamples int

	// Window is how many recent executions form the comparison windows for
	// decline detection. Default: 10.
	Window int

	// TimeDeclineRatio triggers adaptation when the recent window's mean
	// execution time exceeds the prior window's by this relative amount.
	// Default: 0.20 (20% slower).
	TimeDeclineRatio float64

	// AccuracyDeclineRatio triggers adaptation when recent mean success
	// rate drops below the prior window's by this relative amount.
	// Default: 0.10 (10% less accurate).
	AccuracyDeclineRatio float64

	// VarianceCV triggers adaptation when the coefficient of variation of
	// recent execution times exceeds it. Default: 0.5.
	VarianceCV float64

	// SafetyThreshold is the minimum safety score for auto-apply.
	// Default: 0.8.
	SafetyThreshold float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity:      1000,
		MinSamples:           100,
		Window:               10,
		TimeDeclineRatio:     0.20,
		AccuracyDeclineRatio: 0.10,
		VarianceCV:           0.5,
		SafetyThreshold:      0.8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.TimeDeclineRatio <= 0 {
		c.TimeDeclineRatio = d.TimeDeclineRatio
	}
	if c.AccuracyDeclineRatio <= 0 {
		c.AccuracyDeclineRatio = d.AccuracyDeclineRatio
	}
	if c.VarianceCV <= 0 {
		c.VarianceCV = d.VarianceCV
	}
	if c.SafetyThreshold <= 0 {
		c.SafetyThreshold = d.SafetyThreshold
	}
	return c
}

// =============================================================================
// Anomaly Scoring
// =============================================================================

// AnomalyScorer rates how anomalous a snapshot is against a rule's history.
// Scores are in [0,1]; the algorithm is pluggable.
type AnomalyScorer interface {
	Score(history []datatypes.PerformanceSnapshot, latest datatypes.PerformanceSnapshot) float64
}

// ZScoreAnomalyScorer scores the latest execution time by its z-score
// against the history mean, saturating at four standard deviations.
type ZScoreAnomalyScorer struct{}

// Score implements AnomalyScorer.
func (ZScoreAnomalyScorer) Score(history []datatypes.PerformanceSnapshot, latest datatypes.PerformanceSnapshot) float64 {
	if len(history) < 2 {
		return 0
	}
	times := make([]float64, len(history))
	for i, s := range history {
		times[i] = s.ExecutionTimeMS
	}
	m := mean(times)
	sd := stddev(times, m)
	if sd == 0 {
		if latest.ExecutionTimeMS != m {
			return 1
		}
		return 0
	}
	z := math.Abs(latest.ExecutionTimeMS-m) / sd
	return math.Min(1, z/4)
}

// =============================================================================
// Rule State
// =============================================================================

// Default tunable parameters for a scan rule.
func defaultParams() map[string]float64 {
	return map[string]float64{
		"batch_size":  100,
		"parallelism": 4,
		"timeout_ms":  30000,
		"sample_rate": 1.0,
	}
}

// ruleState is the per-rule ring buffer plus current tunables. The
// monitoring path is the only appender; readers copy under lock.
type ruleState struct {
	ring    []datatypes.PerformanceSnapshot
	next    int
	filled  bool
	params  map[string]float64
	anomaly float64
}

func (r *ruleState) append(s datatypes.PerformanceSnapshot, capacity int) {
	if len(r.ring) < capacity {
		r.ring = append(r.ring, s)
		return
	}
	r.ring[r.next] = s
	r.next = (r.next + 1) % capacity
	r.filled = true
}

// ordered returns history oldest-first.
func (r *ruleState) ordered() []datatypes.PerformanceSnapshot {
	if !r.filled {
		out := make([]datatypes.PerformanceSnapshot, len(r.ring))
		copy(out, r.ring)
		return out
	}
	out := make([]datatypes.PerformanceSnapshot, 0, len(r.ring))
	out = append(out, r.ring[r.next:]...)
	out = append(out, r.ring[:r.next]...)
	return out
}

// =============================================================================
// Optimizer
// =============================================================================

// Optimizer owns per-rule performance history and adaptation state.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Optimizer struct {
	mu      sync.RWMutex
	config  Config
	rules   map[string]*ruleState
	applied map[string]datatypes.AppliedChange
	scorer  AnomalyScorer

	// safetyWeight scales candidate safety scores. Feedback on applied
	// changes nudges it: confirmations raise it slightly, refutations
	// lower it harder. Clamped to [0.5, 1.2].
	safetyWeight float64

	logger *slog.Logger
}

// New creates an optimizer. A nil scorer uses ZScoreAnomalyScorer; a nil
// logger falls back to slog.Default().
func New(cfg Config, scorer AnomalyScorer, logger *slog.Logger) *Optimizer {
	if scorer == nil {
		scorer = ZScoreAnomalyScorer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		config:       cfg.withDefaults(),
		rules:        make(map[string]*ruleState),
		applied:      make(map[string]datatypes.AppliedChange),
		scorer:       scorer,
		safetyWeight: 1.0,
		logger:       logger,
	}
}

// Observe appends an execution snapshot to a rule's rolling history and
// refreshes its anomaly score.
func (o *Optimizer) Observe(ruleID string, snapshot datatypes.PerformanceSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, ok := o.rules[ruleID]
	if !ok {
		state = &ruleState{params: defaultParams()}
		o.rules[ruleID] = state
	}
	state.anomaly = o.scorer.Score(state.ordered(), snapshot)
	state.append(snapshot, o.config.HistoryCapacity)
}

// HistoryLen returns the number of buffered observations for a rule.
func (o *Optimizer) HistoryLen(ruleID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if state, ok := o.rules[ruleID]; ok {
		return len(state.ring)
	}
	return 0
}

// Params returns a copy of a rule's current tunable parameters.
func (o *Optimizer) Params(ruleID string) map[string]float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	state, ok := o.rules[ruleID]
	if !ok {
		return defaultParams()
	}
	out := make(map[string]float64, len(state.params))
	for k, v := range state.params {
		out[k] = v
	}
	return out
}

// PrioritizedRules returns observed rule IDs ordered by descending anomaly
// score, so callers adapt the most anomalous rules first.
func (o *Optimizer) PrioritizedRules() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]string, 0, len(o.rules))
	for id := range o.rules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := o.rules[ids[i]].anomaly, o.rules[ids[j]].anomaly
		if a != b {
			return a > b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// diagnosis captures why adaptation triggered.
type diagnosis struct {
	triggered    bool
	slower       bool
	lessAccurate bool
	highVariance bool
	timeRatio    float64
}

// MaybeAdapt evaluates a rule's recent history and, when degradation is
// detected, generates ranked candidate changes and applies those whose
// weighted safety score clears the configured threshold. Every applied
// change carries a rollback plan with the pre-change values.
//
// The returned slice also includes non-applied recommendations (Applied ==
// false) so supervised callers can act on them.
func (o *Optimizer) MaybeAdapt(ruleID string) []datatypes.AppliedChange {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.adapt(ruleID, true)
}

// Propose evaluates like MaybeAdapt but never mutates parameters: every
// returned change has Applied == false. Callers gating adaptations on an
// external policy apply the survivors with Apply, so no reader observes
// a parameter value that was not actually confirmed.
func (o *Optimizer) Propose(ruleID string) []datatypes.AppliedChange {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.adapt(ruleID, false)
}

// Apply commits a proposed change: the rule's parameter takes the new
// value and the change is registered for rollback and feedback. Changes
// below the safety threshold are refused with ErrChangeNotSafe.
func (o *Optimizer) Apply(change datatypes.AppliedChange) (datatypes.AppliedChange, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if change.SafetyScore <= o.config.SafetyThreshold {
		return change, fmt.Errorf("%w: %.2f", ErrChangeNotSafe, change.SafetyScore)
	}
	state, ok := o.rules[change.RuleID]
	if !ok {
		return change, fmt.Errorf("%w: rule %s never observed", ErrUnknownChange, change.RuleID)
	}

	state.params[change.Parameter] = change.NewValue
	change.Applied = true
	change.AppliedAt = time.Now()
	o.applied[change.ChangeID] = change
	o.logger.Info("adaptation applied",
		"rule_id", change.RuleID, "parameter", change.Parameter,
		"old", change.OldValue, "new", change.NewValue,
		"safety", change.SafetyScore)
	return change, nil
}

// SafetyThreshold returns the configured auto-apply threshold.
func (o *Optimizer) SafetyThreshold() float64 {
	return o.config.SafetyThreshold
}

// adapt generates candidate changes for a rule and, when apply is set,
// commits the ones clearing the safety threshold. Caller holds o.mu.
func (o *Optimizer) adapt(ruleID string, apply bool) []datatypes.AppliedChange {
	state, ok := o.rules[ruleID]
	if !ok || len(state.ring) < o.config.MinSamples {
		return nil
	}

	diag := o.diagnose(state.ordered())
	if !diag.triggered {
		return nil
	}

	candidates := o.candidates(state, diag)
	changes := make([]datatypes.AppliedChange, 0, len(candidates))
	for _, cand := range candidates {
		for param, newValue := range cand.Configuration {
			oldValue := state.params[param]
			if newValue == oldValue {
				continue
			}
			change := datatypes.AppliedChange{
				ChangeID:            uuid.NewString(),
				RuleID:              ruleID,
				Parameter:           param,
				OldValue:            oldValue,
				NewValue:            newValue,
				ExpectedImprovement: cand.ExpectedImprovement,
				SafetyScore:         cand.SafetyScore,
				Rollback:            map[string]float64{param: oldValue},
			}
			switch {
			case apply && cand.SafetyScore > o.config.SafetyThreshold:
				state.params[param] = newValue
				change.Applied = true
				change.AppliedAt = time.Now()
				o.applied[change.ChangeID] = change
				o.logger.Info("adaptation applied",
					"rule_id", ruleID, "parameter", param,
					"old", oldValue, "new", newValue,
					"safety", cand.SafetyScore)
			case apply:
				o.logger.Info("adaptation recommended, below safety threshold",
					"rule_id", ruleID, "parameter", param,
					"safety", cand.SafetyScore)
			}
			changes = append(changes, change)
		}
	}
	return changes
}

// diagnose compares the recent window against the prior window.
func (o *Optimizer) diagnose(history []datatypes.PerformanceSnapshot) diagnosis {
	w := o.config.Window
	if len(history) < 2*w {
		return diagnosis{}
	}

	recent := history[len(history)-w:]
	older := history[len(history)-2*w : len(history)-w]

	recentTime := meanOf(recent, func(s datatypes.PerformanceSnapshot) float64 { return s.ExecutionTimeMS })
	olderTime := meanOf(older, func(s datatypes.PerformanceSnapshot) float64 { return s.ExecutionTimeMS })
	recentAcc := meanOf(recent, func(s datatypes.PerformanceSnapshot) float64 { return s.SuccessRate })
	olderAcc := meanOf(older, func(s datatypes.PerformanceSnapshot) float64 { return s.SuccessRate })

	var d diagnosis
	if olderTime > 0 && recentTime > olderTime*(1+o.config.TimeDeclineRatio) {
		d.slower = true
		d.timeRatio = recentTime / olderTime
	}
	if olderAcc > 0 && recentAcc < olderAcc*(1-o.config.AccuracyDeclineRatio) {
		d.lessAccurate = true
	}

	times := make([]float64, len(recent))
	for i, s := range recent {
		times[i] = s.ExecutionTimeMS
	}
	m := mean(times)
	if m > 0 && stddev(times, m)/m > o.config.VarianceCV {
		d.highVariance = true
	}

	d.triggered = d.slower || d.lessAccurate || d.highVariance
	return d
}

// candidates proposes parameter changes ranked by optimization score.
// Each candidate changes one parameter; superseded candidates are simply
// discarded by the caller, never mutated.
func (o *Optimizer) candidates(state *ruleState, diag diagnosis) []datatypes.OptimizationCandidate {
	var out []datatypes.OptimizationCandidate

	add := func(param string, factor, safety, improvement float64) {
		oldValue := state.params[param]
		cand := datatypes.OptimizationCandidate{
			Configuration:       map[string]float64{param: math.Round(oldValue*factor*100) / 100},
			Confidence:          clamp01(safety * o.safetyWeight),
			ExpectedImprovement: improvement,
			SafetyScore:         clamp01(safety * o.safetyWeight),
		}
		cand.OptimizationScore = cand.SafetyScore * improvement
		out = append(out, cand)
	}

	if diag.slower || diag.highVariance {
		// Smaller batches smooth latency with little accuracy risk.
		add("batch_size", 0.75, 0.9, math.Max(0.1, diag.timeRatio-1))
		// Longer timeouts avoid wasted retries; near-safe.
		add("timeout_ms", 1.5, 0.85, 0.1)
		// More parallelism is riskier under contention.
		add("parallelism", 1.5, 0.7, math.Max(0.1, diag.timeRatio-1))
	}
	if diag.lessAccurate {
		// Sampling less is fast but trades accuracy: low safety.
		add("sample_rate", 0.8, 0.5, 0.15)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].OptimizationScore > out[j].OptimizationScore
	})
	return out
}

// Rollback reverts an applied change using its recorded rollback plan.
func (o *Optimizer) Rollback(changeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	change, ok := o.applied[changeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChange, changeID)
	}
	state, ok := o.rules[change.RuleID]
	if !ok {
		return fmt.Errorf("%w: rule %s gone", ErrUnknownChange, change.RuleID)
	}
	for param, value := range change.Rollback {
		state.params[param] = value
	}
	delete(o.applied, changeID)
	o.logger.Info("adaptation rolled back", "rule_id", change.RuleID, "change_id", changeID)
	return nil
}

// Feedback records whether an applied adaptation helped and adjusts the
// safety weighting used for future candidates. The exact weighting formula
// is an implementation detail; refutations weigh more than confirmations.
func (o *Optimizer) Feedback(changeID string, helped bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.applied[changeID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChange, changeID)
	}
	if helped {
		o.safetyWeight += 0.02
	} else {
		o.safetyWeight -= 0.05
	}
	o.safetyWeight = math.Max(0.5, math.Min(1.2, o.safetyWeight))
	o.logger.Debug("optimizer feedback", "change_id", changeID,
		"helped", helped, "safety_weight", o.safetyWeight)
	return nil
}

// SafetyWeight returns the current feedback-adjusted weighting.
func (o *Optimizer) SafetyWeight() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.safetyWeight
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

func stddev(vs []float64, m float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vs)-1))
}

func meanOf(ss []datatypes.PerformanceSnapshot, f func(datatypes.PerformanceSnapshot) float64) float64 {
	if len(ss) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range ss {
		sum += f(s)
	}
	return sum / float64(len(ss))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
