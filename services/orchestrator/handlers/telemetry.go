// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/alerts"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/ingest"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/optimizer"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/predictor"
)

// snapshotBatch is the POST /v1/metrics/snapshots payload.
type snapshotBatch struct {
	Snapshots []datatypes.PerformanceSnapshot `json:"snapshots" binding:"required,min=1"`
}

// IngestSnapshots handles POST /v1/metrics/snapshots: it accepts a batch
// of performance snapshots and returns any alerts they raised.
func IngestSnapshots(ing *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var batch snapshotBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		raised, err := ing.IngestBatch(c.Request.Context(), batch.Snapshots)
		if err != nil {
			status := http.StatusTooManyRequests
			if errors.Is(err, ingest.ErrInvalidSnapshot) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"accepted": len(batch.Snapshots),
			"alerts":   raised,
		})
	}
}

// ActiveAlerts handles GET /v1/alerts.
func ActiveAlerts(evaluator *alerts.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"alerts": evaluator.Active()})
	}
}

// ResolvedAlerts handles GET /v1/alerts/resolved: the bounded history of
// alerts that were resolved, by operator or automatically.
func ResolvedAlerts(evaluator *alerts.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"alerts": evaluator.Resolved()})
	}
}

// ResolveAlert handles POST /v1/alerts/:alertId/resolve.
func ResolveAlert(evaluator *alerts.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		alertID := c.Param("alertId")
		if !evaluator.Resolve(alertID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active alert with that id"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alert_id": alertID, "resolved": true})
	}
}

// feedbackRequest is the POST /v1/optimizer/feedback payload.
type feedbackRequest struct {
	ChangeID string `json:"change_id" binding:"required"`
	Helped   bool   `json:"helped"`
}

// OptimizerFeedback handles POST /v1/optimizer/feedback: operators report
// whether an applied adaptation helped, steering future safety scoring.
func OptimizerFeedback(opt *optimizer.Optimizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req feedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := opt.Feedback(req.ChangeID, req.Helped); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"change_id": req.ChangeID})
	}
}

// RollbackChange handles POST /v1/optimizer/changes/:changeId/rollback.
func RollbackChange(opt *optimizer.Optimizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		changeID := c.Param("changeId")
		if err := opt.Rollback(changeID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"change_id": changeID, "rolled_back": true})
	}
}

// trainRequest is the POST /v1/predictor/train payload.
type trainRequest struct {
	History []datatypes.ExecutionRecord `json:"history" binding:"required,min=1"`
}

// TrainPredictor handles POST /v1/predictor/train.
func TrainPredictor(pred predictor.Predictor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req trainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := pred.Train(c.Request.Context(), req.History)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// predictRequest is the POST /v1/predictor/predict payload.
type predictRequest struct {
	Features map[string]float64 `json:"features" binding:"required"`
}

// Predict handles POST /v1/predictor/predict.
func Predict(pred predictor.Predictor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req predictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		prediction, err := pred.Predict(c.Request.Context(), req.Features)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, prediction)
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
