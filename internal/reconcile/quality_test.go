// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"nexus/internal/domain"
)

type fakeQualityStore struct {
	metrics map[string]domain.AgentQualityMetrics
}

func newFakeQualityStore() *fakeQualityStore {
	return &fakeQualityStore{metrics: make(map[string]domain.AgentQualityMetrics)}
}

func (f *fakeQualityStore) Snapshot(agentID string) domain.AgentQualityMetrics {
	if m, ok := f.metrics[agentID]; ok {
		return m
	}
	return domain.DefaultAgentQualityMetrics()
}

func TestQualityReconciler_ExcludesDegradedBackend(t *testing.T) {
	store := newFakeQualityStore()
	store.metrics["bad"] = domain.AgentQualityMetrics{ErrorRate1h: 0.9}
	store.metrics["good"] = domain.AgentQualityMetrics{ErrorRate1h: 0.1}
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"bad", "good"})

	r := NewQualityReconciler(store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 1 || intent.Candidates[0] != "good" {
		t.Fatalf("expected only good to remain, got %v", intent.Candidates)
	}
	if intent.RejectionReasons[0].Reason.Code() != "quality_degraded" {
		t.Fatalf("expected quality_degraded, got %s", intent.RejectionReasons[0].Reason.Code())
	}
}

func TestQualityReconciler_SafeguardNeverEmptiesCandidateSet(t *testing.T) {
	store := newFakeQualityStore()
	store.metrics["bad1"] = domain.AgentQualityMetrics{ErrorRate1h: 0.9}
	store.metrics["bad2"] = domain.AgentQualityMetrics{ErrorRate1h: 0.95}
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"bad1", "bad2"})

	r := NewQualityReconciler(store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 2 {
		t.Fatalf("expected safeguard to keep all candidates, got %v", intent.Candidates)
	}
	if len(intent.Excluded) != 0 {
		t.Fatalf("expected no exclusions under safeguard, got %v", intent.Excluded)
	}
}

func TestQualityReconciler_UnknownAgentDefaultsToHealthy(t *testing.T) {
	store := newFakeQualityStore()
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"unknown"})

	r := NewQualityReconciler(store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 1 {
		t.Fatalf("expected unknown agent with default metrics to pass, got %v", intent.Candidates)
	}
}
