// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag executes workflow step graphs with bounded parallelism,
// per-step timeouts and retries, and required-step short-circuit semantics.
//
// The engine repeatedly computes the executable frontier (steps whose
// dependencies have all completed), runs frontier steps concurrently up to
// a configured bound, and folds outcomes back into the workflow execution
// record. A required step's failure stops new launches immediately while
// already-running siblings are allowed to finish.
package dag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds execution settings for the engine.
type Config struct {
	// MaxParallelism bounds concurrently running steps. Default: 4.
	MaxParallelism int

	// DefaultTimeout bounds one step attempt when the step itself does not
	// specify a timeout. Default: 30s.
	DefaultTimeout time.Duration

	// DefaultMaxAttempts caps attempts for steps that time out. Logic
	// failures are never retried. Default: 3.
	DefaultMaxAttempts int

	// RetryBackoff is the base delay between timeout retries; it doubles
	// per attempt. Default: 500ms.
	RetryBackoff time.Duration

	// SampleInterval is how often resource usage is sampled while a step
	// runs. Default: 1s.
	SampleInterval time.Duration

	// CancelGrace is how long in-flight steps may keep running after the
	// workflow is cancelled before their contexts are cut. Default: 5s.
	CancelGrace time.Duration

	// OnEvent, if set, receives execution events (step started, step
	// finished, workflow finished). Called from the engine's scheduling
	// goroutine; handlers must not block.
	OnEvent func(Event)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxParallelism:     4,
		DefaultTimeout:     30 * time.Second,
		DefaultMaxAttempts: 3,
		RetryBackoff:       500 * time.Millisecond,
		SampleInterval:     time.Second,
		CancelGrace:        5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxParallelism <= 0 {
		c.MaxParallelism = d.MaxParallelism
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = d.DefaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = d.CancelGrace
	}
	return c
}

// EventKind classifies execution events.
type EventKind string

const (
	EventStepStarted       EventKind = "step_started"
	EventStepCompleted     EventKind = "step_completed"
	EventStepFailed        EventKind = "step_failed"
	EventWorkflowFinished  EventKind = "workflow_finished"
	EventWorkflowCancelled EventKind = "workflow_cancelled"
)

// Event describes one execution state change, for live status consumers.
type Event struct {
	Kind       EventKind                `json:"kind"`
	WorkflowID string                   `json:"workflow_id"`
	StepID     string                   `json:"step_id,omitempty"`
	Status     datatypes.WorkflowStatus `json:"status,omitempty"`
	Reason     datatypes.FailureReason  `json:"reason,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

// =============================================================================
// Interfaces
// =============================================================================

// StepRunner performs the actual work of a step. Implementations live in
// the connector layer; the engine only schedules them.
//
// RunStep must honor ctx cancellation and return promptly when the deadline
// expires.
type StepRunner interface {
	RunStep(ctx context.Context, wf datatypes.Workflow, step datatypes.Step) error
}

// StepRunnerFunc adapts a function to the StepRunner interface.
type StepRunnerFunc func(ctx context.Context, wf datatypes.Workflow, step datatypes.Step) error

// RunStep calls f.
func (f StepRunnerFunc) RunStep(ctx context.Context, wf datatypes.Workflow, step datatypes.Step) error {
	return f(ctx, wf, step)
}

// UsageSampler reads current resource usage for step performance data.
type UsageSampler interface {
	Sample() (cpuUsage, memoryUsage float64)
}

// =============================================================================
// Engine
// =============================================================================

// Engine executes workflows. One engine may execute many workflows
// concurrently; all per-execution state lives on the stack of Execute.
type Engine struct {
	config  Config
	sampler UsageSampler
	logger  *slog.Logger
}

// NewEngine creates an execution engine. A nil sampler disables resource
// sampling; a nil logger falls back to slog.Default().
func NewEngine(cfg Config, sampler UsageSampler, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: cfg.withDefaults(), sampler: sampler, logger: logger}
}

// stepOutcome is what a step goroutine reports back to the scheduler.
type stepOutcome struct {
	stepID   string
	result   *datatypes.StepResult
	required bool
}

// Execute runs the workflow to completion, cancellation, or failure.
//
// The returned record is always non-nil for a structurally valid workflow
// and reflects every step's final status. The error is non-nil only for
// configuration problems (invalid graph) or when the workflow did not
// complete (required step failure, cancellation).
func (e *Engine) Execute(ctx context.Context, wf datatypes.Workflow, runner StepRunner) (*datatypes.WorkflowExecutionRecord, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := Validate(wf); err != nil {
		return nil, err
	}

	record := &datatypes.WorkflowExecutionRecord{
		WorkflowID:  wf.WorkflowID,
		Status:      datatypes.WorkflowRunning,
		StepResults: make(map[string]*datatypes.StepResult, len(wf.Steps)),
		StartedAt:   time.Now(),
	}
	steps := make(map[string]datatypes.Step, len(wf.Steps))
	for _, step := range wf.Steps {
		steps[step.StepID] = step
		record.StepResults[step.StepID] = &datatypes.StepResult{
			StepID: step.StepID,
			Status: datatypes.StepPending,
		}
	}

	// Step contexts are decoupled from the caller's context so in-flight
	// steps survive cancellation for the grace period.
	stepCtx, cutSteps := context.WithCancel(context.WithoutCancel(ctx))
	defer cutSteps()

	outcomes := make(chan stepOutcome)
	completed := make(map[string]bool, len(wf.Steps))
	running := 0
	cancelled := false
	var requiredFailure error

	cancelNow := func() {
		if cancelled {
			return
		}
		cancelled = true
		grace := e.config.CancelGrace
		time.AfterFunc(grace, cutSteps)
		e.logger.Info("workflow cancelled, draining in-flight steps",
			"workflow_id", wf.WorkflowID, "grace", grace)
	}

	for {
		// Launch every currently executable step, bounded by parallelism.
		if requiredFailure == nil && !cancelled {
			for _, step := range wf.Steps {
				if running >= e.config.MaxParallelism {
					break
				}
				res := record.StepResults[step.StepID]
				if res.Status != datatypes.StepPending || !e.depsMet(step, completed) {
					continue
				}
				res.Status = datatypes.StepRunning
				res.StartedAt = time.Now()
				running++
				e.emit(Event{Kind: EventStepStarted, WorkflowID: wf.WorkflowID,
					StepID: step.StepID, Timestamp: res.StartedAt})
				go e.runStep(stepCtx, wf, step, runner, outcomes)
			}
		}

		if running == 0 {
			break
		}

		if cancelled {
			// Only drain. ctx.Done() stays ready once fired and must not
			// be re-selected.
			out := <-outcomes
			running--
			e.fold(record, wf, out, completed)
			continue
		}

		select {
		case out := <-outcomes:
			running--
			e.fold(record, wf, out, completed)
			if out.result.Status == datatypes.StepFailed && out.required && requiredFailure == nil {
				requiredFailure = &StepError{StepID: out.stepID, Err: ErrRequiredStepFailed}
			}
		case <-ctx.Done():
			cancelNow()
		}
	}

	return e.finish(record, wf, cancelled, requiredFailure, completed)
}

// depsMet reports whether every dependency of step has completed.
func (e *Engine) depsMet(step datatypes.Step, completed map[string]bool) bool {
	for _, dep := range step.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// fold applies a step outcome to the record.
func (e *Engine) fold(record *datatypes.WorkflowExecutionRecord, wf datatypes.Workflow,
	out stepOutcome, completed map[string]bool) {

	record.StepResults[out.stepID] = out.result
	switch out.result.Status {
	case datatypes.StepCompleted:
		completed[out.stepID] = true
		record.StepsCompleted++
		e.emit(Event{Kind: EventStepCompleted, WorkflowID: wf.WorkflowID,
			StepID: out.stepID, Timestamp: out.result.CompletedAt})
	case datatypes.StepFailed:
		record.StepsFailed++
		record.Errors = append(record.Errors,
			fmt.Sprintf("step %s: %s (%s)", out.stepID, out.result.Error, out.result.Reason))
		e.emit(Event{Kind: EventStepFailed, WorkflowID: wf.WorkflowID,
			StepID: out.stepID, Reason: out.result.Reason, Timestamp: out.result.CompletedAt})
	}
}

// finish computes the terminal workflow status and return error.
func (e *Engine) finish(record *datatypes.WorkflowExecutionRecord, wf datatypes.Workflow,
	cancelled bool, requiredFailure error, completed map[string]bool) (*datatypes.WorkflowExecutionRecord, error) {

	record.CompletedAt = time.Now()
	switch {
	case requiredFailure != nil:
		record.Status = datatypes.WorkflowFailed
		e.skipPending(record, "not started: required step failed")
		e.emit(Event{Kind: EventWorkflowFinished, WorkflowID: wf.WorkflowID,
			Status: record.Status, Timestamp: record.CompletedAt})
		return record, requiredFailure
	case cancelled && len(completed) < len(wf.Steps):
		record.Status = datatypes.WorkflowCancelled
		e.skipPending(record, "not started: workflow cancelled")
		e.emit(Event{Kind: EventWorkflowCancelled, WorkflowID: wf.WorkflowID,
			Status: record.Status, Timestamp: record.CompletedAt})
		return record, ErrWorkflowCancelled
	default:
		// Non-required failures leave the workflow completed; they are
		// recorded per-step and in Errors. Steps downstream of a failed
		// optional step can never start and are marked skipped.
		record.Status = datatypes.WorkflowCompleted
		e.skipPending(record, "not started: dependency failed")
		e.emit(Event{Kind: EventWorkflowFinished, WorkflowID: wf.WorkflowID,
			Status: record.Status, Timestamp: record.CompletedAt})
		return record, nil
	}
}

// skipPending marks every still-pending step as skipped.
func (e *Engine) skipPending(record *datatypes.WorkflowExecutionRecord, why string) {
	for _, res := range record.StepResults {
		if res.Status == datatypes.StepPending {
			res.Status = datatypes.StepSkipped
			res.Error = why
		}
	}
}

// runStep executes one step with timeout, retry-on-timeout, and resource
// sampling, then reports the outcome.
func (e *Engine) runStep(ctx context.Context, wf datatypes.Workflow, step datatypes.Step,
	runner StepRunner, outcomes chan<- stepOutcome) {

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	maxAttempts := step.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.config.DefaultMaxAttempts
	}

	result := &datatypes.StepResult{
		StepID:    step.StepID,
		Status:    datatypes.StepRunning,
		StartedAt: time.Now(),
	}

	stopSampling := e.startSampling(ctx, result)

	backoff := e.config.RetryBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := runner.RunStep(attemptCtx, wf, step)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		switch {
		case err == nil:
			result.Status = datatypes.StepCompleted
		case ctx.Err() != nil:
			result.Status = datatypes.StepFailed
			result.Reason = datatypes.FailureCancelled
			result.Error = ctx.Err().Error()
		case timedOut:
			if attempt < maxAttempts {
				e.logger.Warn("step timed out, retrying",
					"workflow_id", wf.WorkflowID, "step_id", step.StepID,
					"attempt", attempt, "backoff", backoff)
				select {
				case <-time.After(backoff):
					backoff *= 2
					continue
				case <-ctx.Done():
				}
			}
			result.Status = datatypes.StepFailed
			result.Reason = datatypes.FailureTimeout
			result.Error = ErrStepTimeout.Error()
		default:
			// Logic failure: not retried.
			result.Status = datatypes.StepFailed
			result.Reason = datatypes.FailureLogic
			result.Error = err.Error()
		}
		break
	}

	// Join the sampler before handing the result to the scheduler so the
	// samples slice is no longer being appended to.
	stopSampling()

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	outcomes <- stepOutcome{stepID: step.StepID, result: result, required: step.Required}
}

// startSampling launches the periodic usage sampler for a running step and
// returns a stop function. With no sampler configured it is a no-op.
func (e *Engine) startSampling(ctx context.Context, result *datatypes.StepResult) func() {
	if e.sampler == nil {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(e.config.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cpu, mem := e.sampler.Sample()
				result.Samples = append(result.Samples, datatypes.ResourceSample{
					Timestamp:   time.Now(),
					CPUUsage:    cpu,
					MemoryUsage: mem,
				})
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// emit forwards an event to the configured handler, if any.
func (e *Engine) emit(ev Event) {
	if e.config.OnEvent != nil {
		e.config.OnEvent(ev)
	}
}
