// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers for the orchestration API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/alerts"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/store"
)

var plansTracer = otel.Tracer("aleutian.govern.handlers")

// CreatePlan handles POST /v1/plans: it builds an execution plan from an
// orchestration request, registers its workflows with the event hub, and
// persists it.
func CreatePlan(o *orchestrator.Orchestrator, st *store.Store, hub *EventHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := plansTracer.Start(c.Request.Context(), "CreatePlan")
		defer span.End()

		var req datatypes.OrchestrationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		plan, err := o.CreatePlan(ctx, req)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, orchestrator.ErrPlanInfeasible) {
				// Resource exhaustion is an expected outcome, not a bad
				// request: the caller can retry against a larger pool.
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		if hub != nil {
			ids := make([]string, 0, len(plan.Workflows))
			for _, wf := range plan.Workflows {
				ids = append(ids, wf.WorkflowID)
			}
			hub.RegisterPlan(plan.PlanID, ids)
		}
		if st != nil {
			if err := st.PutPlan(plan); err != nil {
				slog.Error("failed to persist plan", "plan_id", plan.PlanID, "error", err)
			}
		}
		c.JSON(http.StatusCreated, plan)
	}
}

// GetPlan handles GET /v1/plans/:planId.
func GetPlan(o *orchestrator.Orchestrator, evaluator *alerts.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		planID := c.Param("planId")
		plan, err := o.Plan(planID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		status, report, _ := o.Status(planID)
		resp := gin.H{
			"plan":   plan,
			"status": status,
			"report": report,
			"pool":   o.Pool().Snapshot(),
		}
		if evaluator != nil {
			resp["active_alerts"] = evaluator.Active()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ListPlans handles GET /v1/plans.
func ListPlans(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plan_ids": o.PlanIDs()})
	}
}

// CancelPlan handles DELETE /v1/plans/:planId. Cancellation is idempotent.
func CancelPlan(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		planID := c.Param("planId")
		if err := o.Cancel(planID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"plan_id": planID, "cancelling": true})
	}
}

// ExecutePlan handles POST /v1/plans/:planId/execute: it runs the plan to
// completion and returns the final report. Long-running scans should be
// driven through a client that tolerates the request staying open, or
// polled via GET after a cancel.
func ExecutePlan(o *orchestrator.Orchestrator, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := plansTracer.Start(c.Request.Context(), "ExecutePlan")
		defer span.End()

		planID := c.Param("planId")
		report, err := o.ExecutePlan(ctx, planID)
		if err != nil {
			status := http.StatusConflict
			if errors.Is(err, orchestrator.ErrPlanNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		if st != nil {
			if err := st.PutReport(report); err != nil {
				slog.Error("failed to persist report", "plan_id", planID, "error", err)
			}
			for _, rec := range report.Workflows {
				if err := st.PutRecord(planID, rec); err != nil {
					slog.Error("failed to persist workflow record",
						"plan_id", planID, "workflow_id", rec.WorkflowID, "error", err)
				}
			}
		}
		c.JSON(http.StatusOK, report)
	}
}
