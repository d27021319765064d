// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/config"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	cfg := config.Default()
	cfg.AlertThresholds = map[string]float64{"cpu_utilization": 85}
	svc, err := New(cfg, Options{GinMode: "test"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func doJSON(t *testing.T, svc Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	return w
}

func orchestrationBody() map[string]any {
	return map[string]any{
		"requests": []map[string]any{
			{
				"data_source_id": "warehouse-1",
				"rules": []map[string]any{
					{"rule_id": "pii-scan", "complexity": "moderate"},
				},
				"priority":            2,
				"estimated_volume_gb": 10,
			},
		},
	}
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	svc := newTestService(t)

	// Create.
	w := doJSON(t, svc, http.MethodPost, "/v1/plans", orchestrationBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var plan datatypes.ExecutionPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	require.NotEmpty(t, plan.PlanID)
	assert.Len(t, plan.Workflows, 1)

	// Fetch.
	w = doJSON(t, svc, http.MethodGet, "/v1/plans/"+plan.PlanID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Execute.
	w = doJSON(t, svc, http.MethodPost, fmt.Sprintf("/v1/plans/%s/execute", plan.PlanID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report datatypes.PlanReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, datatypes.PlanCompleted, report.Status)
	assert.NotEmpty(t, report.Summary)

	// Second execute is rejected.
	w = doJSON(t, svc, http.MethodPost, fmt.Sprintf("/v1/plans/%s/execute", plan.PlanID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// List includes the plan.
	w = doJSON(t, svc, http.MethodGet, "/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), plan.PlanID)
}

func TestCreatePlanRejectsEmptyBody(t *testing.T) {
	svc := newTestService(t)
	w := doJSON(t, svc, http.MethodPost, "/v1/plans", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelUnknownPlanReturns404(t *testing.T) {
	svc := newTestService(t)
	w := doJSON(t, svc, http.MethodDelete, "/v1/plans/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshotIngestionRaisesAlerts(t *testing.T) {
	svc := newTestService(t)

	w := doJSON(t, svc, http.MethodPost, "/v1/metrics/snapshots", map[string]any{
		"snapshots": []map[string]any{
			{"rule_id": "pii-scan", "cpu_usage": 95.0},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "cpu_utilization")

	w = doJSON(t, svc, http.MethodGet, "/v1/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cpu_utilization")

	// Recovery retires the alert into the queryable resolved history.
	w = doJSON(t, svc, http.MethodPost, "/v1/metrics/snapshots", map[string]any{
		"snapshots": []map[string]any{
			{"rule_id": "pii-scan", "cpu_usage": 10.0},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, svc, http.MethodGet, "/v1/alerts/resolved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cpu_utilization")
}

func TestPredictorTrainTooFewSamples(t *testing.T) {
	svc := newTestService(t)

	history := []map[string]any{
		{
			"rule_id":  "r1",
			"features": map[string]float64{"data_volume_gb": 10},
			"observed": map[string]float64{"execution_time_ms": 1000},
		},
	}
	w := doJSON(t, svc, http.MethodPost, "/v1/predictor/train", map[string]any{"history": history})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"trained":false`)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	svc := newTestService(t)

	w := doJSON(t, svc, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, svc, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
