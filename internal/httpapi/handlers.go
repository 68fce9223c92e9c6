// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"nexus/internal/analyzer"
	"nexus/internal/routing"
)

// handleChatCompletions is the OpenAI-compatible entrypoint shared by the
// chat and embeddings routes (both need only a routing decision; the
// actual request body is forwarded byte-for-byte by the out-of-scope
// egress layer once a backend is chosen).
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req analyzer.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request body","type":"invalid_request"}}`, http.StatusBadRequest)
		return
	}

	tierMode := analyzer.ParseTierMode(r.Header.Get("X-Nexus-Strict"), r.Header.Get("X-Nexus-Flexible"))
	affinityKey := r.Header.Get("X-Nexus-Affinity-Key")
	requestID := uuid.NewString()

	outcome := s.router.Route(requestID, req, tierMode, affinityKey)
	if outcome.Decision == routing.DecisionQueue {
		outcome = s.waitInQueue(r.Context(), outcome)
	}

	s.writeOutcome(w, outcome)

	if outcome.Decision == routing.DecisionRoute {
		// No real egress call happens in this core (spec.md §1's "does not
		// proxy byte streams"); finalize immediately so the Quality Store
		// and Budget State reflect this decision rather than sitting idle.
		s.router.Finalize(outcome, true, 0)
	}
}

// waitInQueue holds a reserved queue slot for the configured wait window,
// converting the Outcome to a Reject if the queue is saturated or the
// window elapses before a slot frees — per spec §5's backpressure model
// and internal/budget/queue.go's documented Enqueue/Wait contract.
func (s *Server) waitInQueue(ctx context.Context, outcome *routing.Outcome) *routing.Outcome {
	if s.queue == nil {
		outcome.Decision = routing.DecisionReject
		return outcome
	}
	if err := s.queue.Enqueue(); err != nil {
		outcome.Decision = routing.DecisionReject
		return outcome
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.queueWaitFor)
	defer cancel()
	if err := s.queue.Wait(waitCtx); err != nil {
		outcome.Decision = routing.DecisionReject
	}
	return outcome
}

func (s *Server) writeOutcome(w http.ResponseWriter, outcome *routing.Outcome) {
	for k, v := range outcome.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcome.StatusCode)

	if outcome.Decision == routing.DecisionRoute {
		_ = json.NewEncoder(w).Encode(struct {
			Status  string `json:"status"`
			Backend string `json:"backend"`
		}{Status: "routed", Backend: outcome.Backend.Name})
		return
	}
	_ = json.NewEncoder(w).Encode(outcome.Body)
}
