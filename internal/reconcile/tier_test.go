// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"nexus/internal/domain"
	"nexus/internal/policy"
)

func addBackendWithModel(l *fakeBackendLookup, id string, tier domain.CapabilityTier, model domain.Model) {
	b := domain.NewBackend(id, id, "http://"+id, domain.BackendTypeCloudVendor)
	b.CapabilityTier = tier
	b.Models = []domain.Model{model}
	l.backends[id] = b
}

func TestTierReconciler_ExcludesMissingVision(t *testing.T) {
	set, err := policy.NewSet(nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	lookup := newFakeBackendLookup()
	addBackendWithModel(lookup, "b1", domain.CapabilityTier{Scalar: 3}, domain.Model{ID: "m", SupportsVision: false})
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{NeedsVision: true}, []string{"b1"})

	r := NewTierReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 0 {
		t.Fatalf("expected exclusion, got %v", intent.Candidates)
	}
	if intent.RejectionReasons[0].Reason.Code() != "missing_capability" {
		t.Fatalf("expected missing_capability, got %s", intent.RejectionReasons[0].Reason.Code())
	}
}

func TestTierReconciler_ExcludesContextTooSmall(t *testing.T) {
	set, err := policy.NewSet(nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	lookup := newFakeBackendLookup()
	addBackendWithModel(lookup, "b1", domain.CapabilityTier{Scalar: 3}, domain.Model{ID: "m", ContextLength: 100})
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{EstimatedTokens: 500}, []string{"b1"})

	r := NewTierReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 0 {
		t.Fatalf("expected exclusion, got %v", intent.Candidates)
	}
	if intent.RejectionReasons[0].Reason.Code() != "context_window_too_small" {
		t.Fatalf("expected context_window_too_small, got %s", intent.RejectionReasons[0].Reason.Code())
	}
}

func TestTierReconciler_StrictAndFlexibleApplySameFloor(t *testing.T) {
	minTier := domain.CapabilityTier{Scalar: 4}
	set, err := policy.NewSet([]domain.TrafficPolicy{
		{Pattern: "gpt-4*", MinCapabilityTier: &minTier},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	lookup := newFakeBackendLookup()
	addBackendWithModel(lookup, "low", domain.CapabilityTier{Scalar: 2}, domain.Model{ID: "gpt-4"})
	addBackendWithModel(lookup, "high", domain.CapabilityTier{Scalar: 5}, domain.Model{ID: "gpt-4"})

	for _, mode := range []domain.TierMode{domain.TierModeStrict, domain.TierModeFlexible} {
		intent := domain.NewRoutingIntent("req-1", "gpt-4", "gpt-4", domain.Requirements{TierEnforcement: mode}, []string{"low", "high"})
		r := NewTierReconciler(set, lookup)
		if err := r.Reconcile(intent); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if len(intent.Candidates) != 1 || intent.Candidates[0] != "high" {
			t.Fatalf("mode %s: expected only high to remain, got %v", mode, intent.Candidates)
		}
		if intent.Constraints.MinTier == nil || intent.Constraints.MinTier.Scalar != 4 {
			t.Fatalf("mode %s: expected MinTier tightened to 4", mode)
		}
	}
}

func TestTierReconciler_NoPolicyLeavesTierUnconstrained(t *testing.T) {
	set, err := policy.NewSet(nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	lookup := newFakeBackendLookup()
	addBackendWithModel(lookup, "b1", domain.CapabilityTier{Scalar: 1}, domain.Model{ID: "m"})
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"b1"})

	r := NewTierReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 1 {
		t.Fatalf("expected no exclusion, got %v", intent.Candidates)
	}
	if intent.Constraints.MinTier != nil {
		t.Fatal("expected MinTier to remain unset")
	}
}
