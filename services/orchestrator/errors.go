// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import "errors"

var (
	// ErrNoRequests indicates an orchestration request with no scan requests.
	ErrNoRequests = errors.New("orchestration request contains no scan requests")

	// ErrNoRules indicates a scan request with no rules.
	ErrNoRules = errors.New("scan request contains no rules")

	// ErrInvalidStrategy indicates an unknown forced strategy.
	ErrInvalidStrategy = errors.New("invalid orchestration strategy")

	// ErrInvalidMode indicates an unknown execution mode.
	ErrInvalidMode = errors.New("invalid execution mode")

	// ErrPlanNotFound indicates an unknown plan ID.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanNotRunnable indicates the plan is not in a runnable state
	// (already executing or already terminal).
	ErrPlanNotRunnable = errors.New("plan is not in a runnable state")

	// ErrPlanInfeasible indicates the pool could never satisfy the plan's
	// total resource requirement, even when completely idle. This is an
	// expected, recoverable outcome: the caller can shrink the request or
	// resubmit against a larger pool.
	ErrPlanInfeasible = errors.New("plan resource requirement exceeds pool capacity")

	// ErrUnknownRuleDependency indicates a rule whose DependsOn names a
	// rule that appears nowhere in the submitted batch.
	ErrUnknownRuleDependency = errors.New("rule dependency not in request batch")

	// ErrPlanOverBudget indicates the plan's estimated resource cost
	// exceeds the request's cost budget.
	ErrPlanOverBudget = errors.New("plan estimated cost exceeds budget")
)
