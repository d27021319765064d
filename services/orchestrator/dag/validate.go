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
	"fmt"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
)

// Validate checks a workflow's step graph for structural problems:
// emptiness, duplicate step IDs, references to unknown steps, and cycles.
//
// Validation runs at plan-creation time so configuration errors never
// surface mid-execution.
func Validate(wf datatypes.Workflow) error {
	if len(wf.Steps) == 0 {
		return fmt.Errorf("workflow %s: %w", wf.WorkflowID, ErrEmptyWorkflow)
	}

	steps := make(map[string]datatypes.Step, len(wf.Steps))
	for _, step := range wf.Steps {
		if _, exists := steps[step.StepID]; exists {
			return fmt.Errorf("workflow %s: %w: %s", wf.WorkflowID, ErrDuplicateStep, step.StepID)
		}
		steps[step.StepID] = step
	}

	for _, step := range wf.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := steps[dep]; !ok {
				return fmt.Errorf("workflow %s: %w: %s -> %s",
					wf.WorkflowID, ErrUnknownDependency, step.StepID, dep)
			}
		}
	}

	if path := findCycle(steps); path != nil {
		return &CycleError{Path: path}
	}
	return nil
}

// findCycle runs a depth-first search with three-color marking and returns
// the step path forming a cycle, or nil.
func findCycle(steps map[string]datatypes.Step) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on current path
		black = 2 // done
	)
	color := make(map[string]int, len(steps))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range steps[id].Dependencies {
			switch color[dep] {
			case gray:
				// Found the back edge; slice out the cycle path.
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						return true
					}
				}
				cycle = []string{id, dep}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for id := range steps {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// TopoOrder returns workflow IDs in a topologically valid order with
// respect to cross-workflow DependsOn edges. Workflows without mutual
// dependencies keep their relative input order so priority sorting done by
// the caller survives. A dependency cycle among workflows is reported via
// CycleError.
func TopoOrder(workflows []datatypes.Workflow) ([]string, error) {
	indegree := make(map[string]int, len(workflows))
	dependents := make(map[string][]string, len(workflows))
	known := make(map[string]bool, len(workflows))

	for _, wf := range workflows {
		known[wf.WorkflowID] = true
		if _, ok := indegree[wf.WorkflowID]; !ok {
			indegree[wf.WorkflowID] = 0
		}
	}
	for _, wf := range workflows {
		for _, dep := range wf.DependsOn {
			if !known[dep] {
				return nil, fmt.Errorf("workflow %s: %w: %s", wf.WorkflowID, ErrUnknownDependency, dep)
			}
			indegree[wf.WorkflowID]++
			dependents[dep] = append(dependents[dep], wf.WorkflowID)
		}
	}

	// Kahn's algorithm, seeded in input order for stable output.
	var order []string
	var frontier []string
	for _, wf := range workflows {
		if indegree[wf.WorkflowID] == 0 {
			frontier = append(frontier, wf.WorkflowID)
		}
	}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}

	if len(order) != len(workflows) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, &CycleError{Path: stuck}
	}
	return order, nil
}
