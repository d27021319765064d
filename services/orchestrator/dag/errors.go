// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dag package.
//
// Configuration errors (cycle, missing dependency, duplicate step) surface
// at validation time and never mid-execution. Runtime errors (step failure,
// timeout) are distinct kinds so callers can apply different retry policy.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyWorkflow is returned for a workflow with no steps.
	ErrEmptyWorkflow = errors.New("workflow has no steps")

	// ErrDuplicateStep is returned when two steps share an ID.
	ErrDuplicateStep = errors.New("duplicate step id")

	// ErrUnknownDependency is returned when a step depends on a step that
	// does not exist in the workflow.
	ErrUnknownDependency = errors.New("dependency references unknown step")

	// ErrCycleDetected is returned when the step dependency graph contains
	// a cycle. This is a configuration error, reported at build time.
	ErrCycleDetected = errors.New("cycle detected in step dependencies")

	// ErrStepTimeout marks a step attempt that exceeded its timeout. It is
	// retried with backoff, unlike logic failures.
	ErrStepTimeout = errors.New("step execution timed out")

	// ErrRequiredStepFailed is returned when a required step fails and the
	// workflow short-circuits.
	ErrRequiredStepFailed = errors.New("required step failed")

	// ErrWorkflowCancelled is returned when execution is cancelled before
	// completion.
	ErrWorkflowCancelled = errors.New("workflow cancelled")
)

// StepError wraps an error with the step that caused it.
type StepError struct {
	StepID string
	Err    error
}

// Error returns the error message.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.StepID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// CycleError reports the step path forming a dependency cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in step dependencies: %v", e.Path)
}

// Unwrap allows errors.Is(err, ErrCycleDetected).
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
