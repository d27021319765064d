// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the orchestration API onto a gin router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/alerts"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/ingest"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/optimizer"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/predictor"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/store"
)

// Deps carries everything the API needs. Store may be nil when running
// without persistence.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *store.Store
	Ingestor     *ingest.Ingestor
	Alerts       *alerts.Evaluator
	Optimizer    *optimizer.Optimizer
	Predictor    predictor.Predictor
	Events       *handlers.EventHub
}

// SetupRoutes registers every endpoint.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		plans := v1.Group("/plans")
		{
			plans.POST("", handlers.CreatePlan(deps.Orchestrator, deps.Store, deps.Events))
			plans.GET("", handlers.ListPlans(deps.Orchestrator))
			plans.GET("/:planId", handlers.GetPlan(deps.Orchestrator, deps.Alerts))
			plans.DELETE("/:planId", handlers.CancelPlan(deps.Orchestrator))
			plans.POST("/:planId/execute", handlers.ExecutePlan(deps.Orchestrator, deps.Store))
			plans.GET("/:planId/events", handlers.PlanEvents(deps.Events))
		}

		v1.POST("/metrics/snapshots", handlers.IngestSnapshots(deps.Ingestor))

		alertRoutes := v1.Group("/alerts")
		{
			alertRoutes.GET("", handlers.ActiveAlerts(deps.Alerts))
			alertRoutes.GET("/resolved", handlers.ResolvedAlerts(deps.Alerts))
			alertRoutes.POST("/:alertId/resolve", handlers.ResolveAlert(deps.Alerts))
		}

		optimizerRoutes := v1.Group("/optimizer")
		{
			optimizerRoutes.POST("/feedback", handlers.OptimizerFeedback(deps.Optimizer))
			optimizerRoutes.POST("/changes/:changeId/rollback", handlers.RollbackChange(deps.Optimizer))
		}

		predictorRoutes := v1.Group("/predictor")
		{
			predictorRoutes.POST("/train", handlers.TrainPredictor(deps.Predictor))
			predictorRoutes.POST("/predict", handlers.Predict(deps.Predictor))
		}
	}
}
