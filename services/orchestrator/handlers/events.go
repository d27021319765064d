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
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/dag"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// =============================================================================
// Event Hub
// =============================================================================

// EventHub fans execution engine events out to websocket subscribers,
// keyed by plan. The engine only knows workflow IDs, so plans register
// their workflow set before execution starts.
//
// # Thread Safety
//
// Safe for concurrent use. Slow subscribers drop events rather than
// blocking the engine's scheduling goroutine.
type EventHub struct {
	mu             sync.RWMutex
	planByWorkflow map[string]string
	subs           map[string]map[chan dag.Event]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		planByWorkflow: make(map[string]string),
		subs:           make(map[string]map[chan dag.Event]struct{}),
	}
}

// RegisterPlan records which workflows belong to a plan so their events
// can be routed to the plan's subscribers.
func (h *EventHub) RegisterPlan(planID string, workflowIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range workflowIDs {
		h.planByWorkflow[id] = planID
	}
}

// Publish routes one engine event to the owning plan's subscribers.
// Events for unregistered workflows are dropped. Never blocks.
func (h *EventHub) Publish(ev dag.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	planID, ok := h.planByWorkflow[ev.WorkflowID]
	if !ok {
		return
	}
	for ch := range h.subs[planID] {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop rather than stall execution.
		}
	}
}

// Subscribe returns a buffered event channel for a plan and a cancel
// function that must be called when the subscriber goes away.
func (h *EventHub) Subscribe(planID string) (<-chan dag.Event, func()) {
	ch := make(chan dag.Event, 256)
	h.mu.Lock()
	if h.subs[planID] == nil {
		h.subs[planID] = make(map[chan dag.Event]struct{})
	}
	h.subs[planID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[planID], ch)
		if len(h.subs[planID]) == 0 {
			delete(h.subs, planID)
		}
		h.mu.Unlock()
	}
}

// =============================================================================
// Websocket Handler
// =============================================================================

// PlanEvents handles GET /v1/plans/:planId/events: it upgrades to a
// websocket and streams execution events for the plan until the client
// disconnects.
func PlanEvents(hub *EventHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		planID := c.Param("planId")

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		events, unsubscribe := hub.Subscribe(planID)
		defer unsubscribe()
		slog.Info("event subscriber connected", "plan_id", planID)

		// Reader goroutine detects client disconnect.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev := <-events:
				if err := ws.WriteJSON(ev); err != nil {
					slog.Warn("failed to write event", "plan_id", planID, "error", err)
					return
				}
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
