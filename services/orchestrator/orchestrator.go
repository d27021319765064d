// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator coordinates scan-rule execution: it turns a batch
// of scan requests into an execution plan (workflows, resource allocation,
// topological order, risk assessment), drives the plan under an execution
// mode, and produces the final report.
//
// # Description
//
// The orchestrator owns plan and execution record lifetimes. It consults
// the decision engine for a coordination strategy, the resource pool for
// feasibility and allocation, the performance predictor for duration
// estimates, and the adaptive optimizer for post-execution learning.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. A plan executes at
// most once; Cancel may be called from any goroutine and is idempotent.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/dag"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/decision"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/optimizer"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/predictor"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/resourcepool"
	"github.com/google/uuid"
)

// =============================================================================
// Configuration
// =============================================================================

// ConfirmFunc is the supervised-mode confirmation hook. It receives a
// proposed adaptation and reports whether the operator approved it.
// Implementations may block (e.g. on an operator console) but should
// respect their own deadlines.
type ConfirmFunc func(change datatypes.AppliedChange) bool

// Config holds orchestrator settings.
type Config struct {
	// DefaultMode applies when a request does not name one. Default:
	// autonomous.
	DefaultMode datatypes.Mode

	// MaxParallelWorkflows bounds concurrently executing workflows when
	// the request's constraints do not. Default: 4.
	MaxParallelWorkflows int

	// LowRiskSafety is the safety score at or above which an adaptation
	// counts as low-risk for hybrid mode auto-apply. Default: 0.9.
	LowRiskSafety float64

	// MaxRetainedPlans bounds how many terminal plans stay queryable in
	// memory. The oldest terminal plans beyond the cap are evicted;
	// their reports remain available from the persistent store.
	// Default: 256.
	MaxRetainedPlans int

	// Confirm is the supervised-mode hook. A nil hook rejects every
	// adaptation, demoting it to a recommendation.
	Confirm ConfirmFunc

	// Metrics, if set, receives plan/workflow/adaptation counters.
	Metrics *observability.OrchestrationMetrics
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMode:          datatypes.ModeAutonomous,
		MaxParallelWorkflows: 4,
		MaxRetainedPlans:     256,
		LowRiskSafety:        0.9,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultMode == "" {
		c.DefaultMode = d.DefaultMode
	}
	if c.MaxParallelWorkflows <= 0 {
		c.MaxParallelWorkflows = d.MaxParallelWorkflows
	}
	if c.MaxRetainedPlans <= 0 {
		c.MaxRetainedPlans = d.MaxRetainedPlans
	}
	if c.LowRiskSafety <= 0 {
		c.LowRiskSafety = d.LowRiskSafety
	}
	return c
}

// =============================================================================
// Orchestrator
// =============================================================================

// planState tracks one plan's lifecycle alongside the immutable plan.
type planState struct {
	plan   *datatypes.ExecutionPlan
	status datatypes.PlanStatus
	mode   datatypes.Mode
	cancel context.CancelFunc
	report *datatypes.PlanReport
}

// Orchestrator is the coordination core. Construct with New; all
// collaborators are injected explicitly and owned by the caller.
type Orchestrator struct {
	config    Config
	pool      *resourcepool.Pool
	decider   *decision.Engine
	engine    *dag.Engine
	predictor predictor.Predictor
	optimizer *optimizer.Optimizer
	runner    dag.StepRunner
	logger    *slog.Logger

	mu    sync.Mutex
	plans map[string]*planState

	// retired lists terminal plan IDs oldest first; retire evicts from
	// plans once it outgrows the retention cap.
	retired []string
}

// New creates an orchestrator. A nil logger falls back to slog.Default();
// every other collaborator is required.
func New(cfg Config, pool *resourcepool.Pool, decider *decision.Engine,
	engine *dag.Engine, pred predictor.Predictor, opt *optimizer.Optimizer,
	runner dag.StepRunner, logger *slog.Logger) *Orchestrator {

	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config:    cfg.withDefaults(),
		pool:      pool,
		decider:   decider,
		engine:    engine,
		predictor: pred,
		optimizer: opt,
		runner:    runner,
		logger:    logger,
		plans:     make(map[string]*planState),
	}
}

// =============================================================================
// Plan Creation
// =============================================================================

// CreatePlan analyzes the request batch, validates resource feasibility
// with a dry-run against the pool, and builds an immutable execution plan.
//
// # Outputs
//
//   - *ExecutionPlan: the created plan, registered for later execution.
//   - error: ErrNoRequests/ErrNoRules/ErrInvalidStrategy for bad input,
//     ErrPlanInfeasible when the pool could never satisfy the requirement,
//     or a dag validation error for cyclic dependencies.
func (o *Orchestrator) CreatePlan(ctx context.Context, req datatypes.OrchestrationRequest) (*datatypes.ExecutionPlan, error) {
	if len(req.Requests) == 0 {
		return nil, ErrNoRequests
	}
	for _, sr := range req.Requests {
		if len(sr.Rules) == 0 {
			return nil, fmt.Errorf("%w: data source %s", ErrNoRules, sr.DataSourceID)
		}
	}
	if req.Strategy != "" && !datatypes.ValidStrategy(req.Strategy) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, req.Strategy)
	}

	analysis := AnalyzeRequests(req.Requests)

	// Dry-run feasibility: can the pool, completely idle, ever hold the
	// total requirement? No reservation happens here.
	if !o.pool.CanSatisfy(analysis.RecommendedResources) {
		o.logger.Warn("plan infeasible for pool",
			"required_cpu", analysis.RecommendedResources.CPUCores,
			"required_memory_mb", analysis.RecommendedResources.MemoryMB)
		return nil, fmt.Errorf("%w: need %.0f cores / %.0f MB",
			ErrPlanInfeasible,
			analysis.RecommendedResources.CPUCores,
			analysis.RecommendedResources.MemoryMB)
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = o.decider.ChooseStrategy(req.Requests, o.pool.Utilization())
	}

	// A rule may depend on a rule scanned in a different request. Those
	// cross-request edges cannot be step dependencies (each request is
	// its own workflow), so they become workflow-level DependsOn edges on
	// the workflows owning the depended-on rules.
	owners := make(map[string][]int, len(req.Requests))
	for i, sr := range req.Requests {
		for _, rule := range sr.Rules {
			owners[rule.RuleID] = append(owners[rule.RuleID], i)
		}
	}

	workflows := make([]datatypes.Workflow, 0, len(req.Requests))
	external := make([][]int, len(req.Requests))
	allocation := make(map[string]datatypes.ResourceRequirement, len(req.Requests))
	for i, sr := range req.Requests {
		wf, crossDeps := buildWorkflow(sr)
		if err := dag.Validate(wf); err != nil {
			return nil, fmt.Errorf("workflow for %s: %w", sr.DataSourceID, err)
		}
		for _, dep := range crossDeps {
			found := false
			for _, j := range owners[dep] {
				if j != i {
					external[i] = append(external[i], j)
					found = true
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: %s depends on %s",
					ErrUnknownRuleDependency, sr.DataSourceID, dep)
			}
		}
		workflows = append(workflows, wf)
		allocation[wf.WorkflowID] = analyzeOne(sr).RecommendedResources
	}
	for i := range workflows {
		seen := make(map[string]bool, len(external[i]))
		for _, j := range external[i] {
			id := workflows[j].WorkflowID
			if !seen[id] {
				seen[id] = true
				workflows[i].DependsOn = append(workflows[i].DependsOn, id)
			}
		}
	}

	order, err := dag.TopoOrder(workflows)
	if err != nil {
		return nil, err
	}

	availability := o.decider.ResourceAvailabilityScore(o.pool.Utilization())
	risk, contingencies := assessRisk(analysis, availability)

	estimated := o.estimateDuration(ctx, req, strategy)
	cost := analysis.RecommendedResources.CPUCores * estimated.Seconds()
	if b := req.Constraints.MaxCostUnits; b > 0 && cost > b {
		return nil, fmt.Errorf("%w: estimated %.1f core-seconds, budget %.1f",
			ErrPlanOverBudget, cost, b)
	}

	plan := &datatypes.ExecutionPlan{
		PlanID:             uuid.NewString(),
		Strategy:           strategy,
		Workflows:          workflows,
		ExecutionOrder:     order,
		ResourceAllocation: allocation,
		EstimatedDuration:  estimated,
		EstimatedCostUnits: cost,
		Analysis:           analysis,
		Risk:               risk,
		ContingencyPlans:   contingencies,
		Constraints:        req.Constraints,
		CreatedAt:          time.Now(),
	}

	mode := req.Mode
	if mode == "" {
		mode = o.config.DefaultMode
	}
	if !datatypes.ValidMode(mode) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	o.mu.Lock()
	o.plans[plan.PlanID] = &planState{plan: plan, status: datatypes.PlanCreated, mode: mode}
	o.mu.Unlock()

	o.logger.Info("plan created",
		"plan_id", plan.PlanID,
		"strategy", strategy,
		"workflows", len(workflows),
		"complexity_score", analysis.Score,
		"complexity_level", analysis.Level,
		"risk", risk.Level)
	return plan, nil
}

// buildWorkflow turns one scan request into a step DAG: one scan step per
// rule (honoring rule dependencies), a validation step over all scans, and
// an optional notification step. Dependencies on rules outside this
// request are returned as crossDeps for the caller to translate into
// workflow-level edges.
func buildWorkflow(sr datatypes.ScanRequest) (wf datatypes.Workflow, crossDeps []string) {
	steps := make([]datatypes.Step, 0, len(sr.Rules)+2)
	scanIDs := make([]string, 0, len(sr.Rules))

	local := make(map[string]bool, len(sr.Rules))
	for _, rule := range sr.Rules {
		local[rule.RuleID] = true
	}

	for _, rule := range sr.Rules {
		deps := make([]string, 0, len(rule.DependsOn))
		for _, dep := range rule.DependsOn {
			if !local[dep] {
				crossDeps = append(crossDeps, dep)
				continue
			}
			deps = append(deps, "scan-"+dep)
		}
		stepID := "scan-" + rule.RuleID
		scanIDs = append(scanIDs, stepID)
		steps = append(steps, datatypes.Step{
			StepID:       stepID,
			Type:         datatypes.StepScan,
			Dependencies: deps,
			Required:     true,
			RuleID:       rule.RuleID,
		})
	}

	steps = append(steps, datatypes.Step{
		StepID:       "validate-results",
		Type:         datatypes.StepValidation,
		Dependencies: scanIDs,
		Required:     true,
	})
	steps = append(steps, datatypes.Step{
		StepID:       "notify-completion",
		Type:         datatypes.StepNotification,
		Dependencies: []string{"validate-results"},
		Required:     false,
	})

	return datatypes.Workflow{
		WorkflowID:   uuid.NewString(),
		Name:         "scan-" + sr.DataSourceID,
		DataSourceID: sr.DataSourceID,
		Steps:        steps,
		Priority:     sr.Priority,
		CriticalPath: sr.Critical,
	}, crossDeps
}

// estimateDuration sums predicted per-request execution time and divides
// by the effective parallelism of the chosen strategy.
func (o *Orchestrator) estimateDuration(ctx context.Context, req datatypes.OrchestrationRequest,
	strategy datatypes.Strategy) time.Duration {

	if o.predictor == nil {
		return 0
	}

	totalMS := 0.0
	for _, sr := range req.Requests {
		pred, err := o.predictor.Predict(ctx, map[string]float64{
			"data_volume_gb":   sr.EstimatedVolumeGB,
			"rule_count":       float64(len(sr.Rules)),
			"compliance_count": float64(len(sr.ComplianceRequirements)),
		})
		if err != nil {
			o.logger.Warn("duration prediction failed", "data_source_id", sr.DataSourceID, "error", err)
			continue
		}
		totalMS += pred.ExecutionTimeMS
	}

	parallelism := 1
	if strategy != datatypes.StrategySequential {
		parallelism = o.config.MaxParallelWorkflows
		if c := req.Constraints.MaxParallelWorkflows; c > 0 && c < parallelism {
			parallelism = c
		}
	}
	return time.Duration(totalMS/float64(parallelism)) * time.Millisecond
}

// =============================================================================
// Plan Execution
// =============================================================================

// wfOutcome is what a workflow goroutine reports back to the plan scheduler.
type wfOutcome struct {
	workflowID string
	record     *datatypes.WorkflowExecutionRecord
	consumed   datatypes.ResourceRequirement
	critical   bool
}

// ExecutePlan runs a created plan to completion under its execution mode
// and returns the final report.
//
// # Description
//
// Workflows launch in execution order, bounded by the strategy's
// parallelism; each one allocates its share of the pool before starting
// and releases it when done. A required failure on a critical-path
// workflow stops orchestration early (in-flight workflows drain). After
// execution the adaptive optimizer is consulted per rule; which of its
// changes stick depends on the mode.
//
// # Edge Cases
//
//   - Allocation failures at launch time are retried while other
//     workflows run; if nothing is running and the allocation still
//     fails, the workflow is recorded as failed and execution continues.
//   - Cancelling the plan's context produces a cancelled report, never a
//     hang.
func (o *Orchestrator) ExecutePlan(ctx context.Context, planID string) (*datatypes.PlanReport, error) {
	o.mu.Lock()
	state, ok := o.plans[planID]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if state.status != datatypes.PlanCreated {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrPlanNotRunnable, planID, state.status)
	}
	state.status = datatypes.PlanRunning
	runCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel
	plan := state.plan
	mode := state.mode
	o.mu.Unlock()
	defer cancel()

	if d := plan.Constraints.MaxDurationSeconds; d > 0 {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithTimeout(runCtx, time.Duration(d*float64(time.Second)))
		defer cancelDeadline()
	}

	o.logger.Info("plan execution started",
		"plan_id", planID, "mode", mode, "strategy", plan.Strategy)

	report := &datatypes.PlanReport{
		PlanID:    planID,
		Mode:      mode,
		Strategy:  plan.Strategy,
		Workflows: make(map[string]*datatypes.WorkflowExecutionRecord, len(plan.Workflows)),
		StartedAt: time.Now(),
	}

	status := o.runWorkflows(runCtx, plan, report)
	o.applyAdaptations(plan, mode, report)

	report.Status = status
	report.CompletedAt = time.Now()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)
	report.Summary = summarize(plan, report)

	o.mu.Lock()
	state.status = status
	state.report = report
	state.cancel = nil
	o.retire(planID)
	o.mu.Unlock()

	if o.config.Metrics != nil {
		o.config.Metrics.RecordPlan(string(status))
	}
	o.logger.Info("plan execution finished",
		"plan_id", planID, "status", status, "duration", report.Duration)
	return report, nil
}

// runWorkflows drives the workflow-level frontier loop and returns the
// plan's terminal status.
func (o *Orchestrator) runWorkflows(ctx context.Context, plan *datatypes.ExecutionPlan,
	report *datatypes.PlanReport) datatypes.PlanStatus {

	maxParallel := o.config.MaxParallelWorkflows
	if plan.Strategy == datatypes.StrategySequential {
		maxParallel = 1
	}
	if c := plan.Constraints.MaxParallelWorkflows; c > 0 && c < maxParallel {
		maxParallel = c
	}

	succeeded := make(map[string]bool, len(plan.Workflows)) // completed only
	launched := make(map[string]bool, len(plan.Workflows))
	outcomes := make(chan wfOutcome)
	running := 0
	cancelled := false
	criticalFailure := false

	fold := func(out wfOutcome) {
		running--
		report.Workflows[out.workflowID] = out.record
		report.ResourcesConsumed = report.ResourcesConsumed.Add(out.consumed)
		if o.config.Metrics != nil {
			o.config.Metrics.WorkflowEnded()
			o.publishPoolMetrics()
		}
		switch out.record.Status {
		case datatypes.WorkflowCompleted:
			succeeded[out.workflowID] = true
		case datatypes.WorkflowFailed:
			if out.critical {
				criticalFailure = true
				o.logger.Error("critical-path workflow failed, stopping plan",
					"plan_id", plan.PlanID, "workflow_id", out.workflowID)
			}
		}
	}

	for {
		if !cancelled && !criticalFailure {
			for _, id := range o.readyWorkflows(plan, launched, succeeded) {
				if running >= maxParallel {
					break
				}
				wf, _ := plan.WorkflowByID(id)
				req := plan.ResourceAllocation[id]
				alloc, err := o.pool.Allocate(req)
				if err != nil {
					if running > 0 {
						// Resources may free up when a running workflow
						// finishes; retry this one on the next pass.
						continue
					}
					o.logger.Warn("workflow allocation failed with idle pool",
						"plan_id", plan.PlanID, "workflow_id", id, "error", err)
					if o.config.Metrics != nil {
						o.config.Metrics.RecordAllocationFailure()
					}
					launched[id] = true
					report.Workflows[id] = &datatypes.WorkflowExecutionRecord{
						WorkflowID: id,
						Status:     datatypes.WorkflowFailed,
						Errors:     []string{err.Error()},
					}
					continue
				}
				launched[id] = true
				running++
				if o.config.Metrics != nil {
					o.config.Metrics.WorkflowStarted()
					o.publishPoolMetrics()
				}
				go o.runWorkflow(ctx, wf, req, alloc, outcomes)
			}
		}

		if running == 0 {
			break
		}

		if cancelled {
			// Only drain. ctx.Done() stays ready once fired and must not
			// be re-selected while in-flight workflows finish.
			fold(<-outcomes)
			continue
		}

		select {
		case out := <-outcomes:
			fold(out)
		case <-ctx.Done():
			cancelled = true
		}
	}

	// Workflows that never launched (blocked behind a failure or stop)
	// get an explicit cancelled record so the report covers every
	// workflow in the plan.
	for _, wf := range plan.Workflows {
		if _, ok := report.Workflows[wf.WorkflowID]; !ok {
			report.Workflows[wf.WorkflowID] = &datatypes.WorkflowExecutionRecord{
				WorkflowID: wf.WorkflowID,
				Status:     datatypes.WorkflowCancelled,
			}
		}
	}

	return planStatus(plan, report, cancelled, criticalFailure)
}

// readyWorkflows returns unlaunched workflows whose dependencies have all
// completed, in execution order. Priority-based strategies reorder the
// ready set by descending workflow priority.
func (o *Orchestrator) readyWorkflows(plan *datatypes.ExecutionPlan,
	launched, succeeded map[string]bool) []string {

	var ready []string
	for _, id := range plan.ExecutionOrder {
		if launched[id] {
			continue
		}
		wf, ok := plan.WorkflowByID(id)
		if !ok {
			continue
		}
		blocked := false
		for _, dep := range wf.DependsOn {
			if !succeeded[dep] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}

	if plan.Strategy == datatypes.StrategyPriorityBased {
		sort.SliceStable(ready, func(i, j int) bool {
			a, _ := plan.WorkflowByID(ready[i])
			b, _ := plan.WorkflowByID(ready[j])
			return a.Priority > b.Priority
		})
	}
	return ready
}

// runWorkflow executes one workflow with its allocation committed for the
// duration, then releases and reports back.
func (o *Orchestrator) runWorkflow(ctx context.Context, wf datatypes.Workflow,
	req datatypes.ResourceRequirement, alloc *resourcepool.Allocation, outcomes chan<- wfOutcome) {

	if err := o.pool.Commit(alloc); err != nil {
		o.pool.Release(alloc)
		outcomes <- wfOutcome{
			workflowID: wf.WorkflowID,
			record: &datatypes.WorkflowExecutionRecord{
				WorkflowID: wf.WorkflowID,
				Status:     datatypes.WorkflowFailed,
				Errors:     []string{err.Error()},
			},
			critical: wf.CriticalPath,
		}
		return
	}

	record, err := o.engine.Execute(ctx, wf, o.runner)
	o.pool.Release(alloc)
	if err != nil {
		o.logger.Warn("workflow did not complete",
			"workflow_id", wf.WorkflowID, "error", err)
	}
	if record == nil {
		record = &datatypes.WorkflowExecutionRecord{
			WorkflowID: wf.WorkflowID,
			Status:     datatypes.WorkflowFailed,
			Errors:     []string{err.Error()},
		}
	}
	outcomes <- wfOutcome{
		workflowID: wf.WorkflowID,
		record:     record,
		consumed:   req,
		critical:   wf.CriticalPath,
	}
}

// planStatus folds per-workflow outcomes into the plan's terminal status.
func planStatus(plan *datatypes.ExecutionPlan, report *datatypes.PlanReport,
	cancelled, criticalFailure bool) datatypes.PlanStatus {

	switch {
	case criticalFailure:
		return datatypes.PlanStopped
	case cancelled:
		return datatypes.PlanCancelled
	}

	completed, failed := 0, 0
	for _, rec := range report.Workflows {
		switch rec.Status {
		case datatypes.WorkflowCompleted:
			completed++
		case datatypes.WorkflowFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return datatypes.PlanCompleted
	case completed == 0:
		return datatypes.PlanFailed
	default:
		return datatypes.PlanPartiallyFailed
	}
}

// =============================================================================
// Adaptation Gating
// =============================================================================

// applyAdaptations asks the optimizer for proposed changes per rule and
// gates them by execution mode before anything mutates. Proposals below
// the safety threshold are recorded as recommendations in every mode;
// the rest pass through the mode gate:
//
//   - autonomous: applied.
//   - supervised: applied only when the confirmation hook approves.
//   - hybrid: applied only when low-risk (safety ≥ LowRiskSafety).
//   - manual: recorded as a recommendation, never applied.
//
// Parameters change only through Apply, after the gate; concurrent
// Params readers never observe an unconfirmed value.
func (o *Orchestrator) applyAdaptations(plan *datatypes.ExecutionPlan, mode datatypes.Mode,
	report *datatypes.PlanReport) {

	if o.optimizer == nil {
		return
	}

	threshold := o.optimizer.SafetyThreshold()
	seen := make(map[string]bool)
	for _, wf := range plan.Workflows {
		for _, step := range wf.Steps {
			if step.RuleID == "" || seen[step.RuleID] {
				continue
			}
			seen[step.RuleID] = true

			for _, change := range o.optimizer.Propose(step.RuleID) {
				if change.SafetyScore <= threshold {
					report.Recommendations = append(report.Recommendations, change)
					o.recordAdaptation("recommended")
					continue
				}
				if !o.keepChange(mode, change) {
					report.Recommendations = append(report.Recommendations, change)
					o.recordAdaptation("declined")
					continue
				}
				applied, err := o.optimizer.Apply(change)
				if err != nil {
					o.logger.Error("adaptation apply failed",
						"change_id", change.ChangeID, "error", err)
					report.Recommendations = append(report.Recommendations, change)
					o.recordAdaptation("declined")
					continue
				}
				report.AppliedChanges = append(report.AppliedChanges, applied)
				o.recordAdaptation("applied")
			}
		}
	}
}

// keepChange decides whether a proposed optimizer change may be applied
// under the given mode.
func (o *Orchestrator) keepChange(mode datatypes.Mode, change datatypes.AppliedChange) bool {
	switch mode {
	case datatypes.ModeAutonomous:
		return true
	case datatypes.ModeSupervised:
		return o.config.Confirm != nil && o.config.Confirm(change)
	case datatypes.ModeHybrid:
		return change.SafetyScore >= o.config.LowRiskSafety
	default: // manual
		return false
	}
}

func (o *Orchestrator) recordAdaptation(action string) {
	if o.config.Metrics != nil {
		o.config.Metrics.RecordAdaptation(action)
	}
}

// =============================================================================
// Reporting and Queries
// =============================================================================

// summarize builds the human-readable account of the run.
func summarize(plan *datatypes.ExecutionPlan, report *datatypes.PlanReport) string {
	completed, failed, cancelled := 0, 0, 0
	stepsDone, stepsFailed := 0, 0
	for _, rec := range report.Workflows {
		switch rec.Status {
		case datatypes.WorkflowCompleted:
			completed++
		case datatypes.WorkflowFailed:
			failed++
		case datatypes.WorkflowCancelled:
			cancelled++
		}
		stepsDone += rec.StepsCompleted
		stepsFailed += rec.StepsFailed
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s finished %s under %s strategy in %s: ",
		plan.PlanID, report.Status, plan.Strategy, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "%d/%d workflows completed (%d failed, %d cancelled), %d steps done, %d steps failed.",
		completed, len(plan.Workflows), failed, cancelled, stepsDone, stepsFailed)
	if n := len(report.AppliedChanges); n > 0 {
		fmt.Fprintf(&b, " %d adaptation(s) applied.", n)
	}
	if n := len(report.Recommendations); n > 0 {
		fmt.Fprintf(&b, " %d recommendation(s) pending review.", n)
	}
	fmt.Fprintf(&b, " Resources consumed: %.1f cores, %.0f MB memory.",
		report.ResourcesConsumed.CPUCores, report.ResourcesConsumed.MemoryMB)
	return b.String()
}

// publishPoolMetrics pushes the current pool accounting to the gauges.
// Callers hold no orchestrator lock; the pool snapshots under its own.
func (o *Orchestrator) publishPoolMetrics() {
	for kind, snap := range o.pool.Snapshot() {
		o.config.Metrics.SetPoolResource(string(kind), "used", snap.Used)
		o.config.Metrics.SetPoolResource(string(kind), "reserved", snap.Reserved)
		o.config.Metrics.SetPoolResource(string(kind), "total", snap.Total)
	}
}

// Pool returns the resource pool backing this orchestrator, for status
// reporting.
func (o *Orchestrator) Pool() *resourcepool.Pool {
	return o.pool
}

// retire marks a plan terminal and evicts the oldest terminal plans past
// the retention cap. Evicted plans stay available from the persistent
// store. Caller holds o.mu.
func (o *Orchestrator) retire(planID string) {
	o.retired = append(o.retired, planID)
	for len(o.retired) > o.config.MaxRetainedPlans {
		evicted := o.retired[0]
		o.retired = o.retired[1:]
		delete(o.plans, evicted)
		o.logger.Debug("terminal plan evicted from memory", "plan_id", evicted)
	}
}

// Plan returns the immutable plan by ID.
func (o *Orchestrator) Plan(planID string) (*datatypes.ExecutionPlan, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return state.plan, nil
}

// Status returns a plan's current status and, once terminal, its report.
func (o *Orchestrator) Status(planID string) (datatypes.PlanStatus, *datatypes.PlanReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.plans[planID]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return state.status, state.report, nil
}

// Cancel stops a running plan. Cancelling an unknown plan is an error;
// cancelling a terminal or not-yet-started plan is a no-op. Safe to call
// repeatedly.
func (o *Orchestrator) Cancel(planID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.plans[planID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if state.status == datatypes.PlanCreated {
		state.status = datatypes.PlanCancelled
		o.retire(planID)
		o.logger.Info("plan cancelled before execution", "plan_id", planID)
		return nil
	}
	if state.cancel != nil {
		state.cancel()
	}
	return nil
}

// PlanIDs returns every registered plan ID, newest last by insertion
// order not guaranteed.
func (o *Orchestrator) PlanIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.plans))
	for id := range o.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
