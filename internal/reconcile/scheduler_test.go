// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"nexus/internal/domain"
)

func addScoredBackend(l *fakeBackendLookup, id string, priority int, typ domain.BackendType, zone domain.PrivacyZone) *domain.Backend {
	b := domain.NewBackend(id, id, "http://"+id, typ)
	b.Priority = priority
	b.PrivacyZone = zone
	l.backends[id] = b
	return b
}

func TestSchedulerReconciler_PicksHighestPriority(t *testing.T) {
	lookup := newFakeBackendLookup()
	addScoredBackend(lookup, "low", 1, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	addScoredBackend(lookup, "high", 5, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	store := newFakeQualityStore()

	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"low", "high"})
	r := NewSchedulerReconciler(lookup, store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if intent.SelectedBackend != "high" {
		t.Fatalf("expected high to be selected, got %q", intent.SelectedBackend)
	}
	backend, _ := lookup.Get("high")
	if backend.PendingRequests() != 1 {
		t.Fatalf("expected pending counter incremented, got %d", backend.PendingRequests())
	}
}

func TestSchedulerReconciler_LoadPenaltyBreaksEqualPriorityTie(t *testing.T) {
	lookup := newFakeBackendLookup()
	busy := addScoredBackend(lookup, "busy", 3, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	busy.IncrementPending()
	busy.IncrementPending()
	addScoredBackend(lookup, "idle", 3, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	store := newFakeQualityStore()

	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"busy", "idle"})
	r := NewSchedulerReconciler(lookup, store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if intent.SelectedBackend != "idle" {
		t.Fatalf("expected idle to win on load penalty, got %q", intent.SelectedBackend)
	}
}

func TestSchedulerReconciler_LexicographicTieBreakIsDeterministic(t *testing.T) {
	lookup := newFakeBackendLookup()
	addScoredBackend(lookup, "zzz", 1, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	addScoredBackend(lookup, "aaa", 1, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	store := newFakeQualityStore()

	for i := 0; i < 5; i++ {
		lookup2 := newFakeBackendLookup()
		addScoredBackend(lookup2, "zzz", 1, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
		addScoredBackend(lookup2, "aaa", 1, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
		intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"zzz", "aaa"})
		r := NewSchedulerReconciler(lookup2, store)
		if err := r.Reconcile(intent); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if intent.SelectedBackend != "aaa" {
			t.Fatalf("expected deterministic lexicographic tie-break to pick aaa, got %q", intent.SelectedBackend)
		}
	}
}

func TestSchedulerReconciler_SoftLimitBonusFavorsLocal(t *testing.T) {
	lookup := newFakeBackendLookup()
	addScoredBackend(lookup, "cloud", 1, domain.BackendTypeCloudVendor, domain.PrivacyZoneOpen)
	addScoredBackend(lookup, "local", 1, domain.BackendTypeLocalSingleHost, domain.PrivacyZoneRestricted)
	store := newFakeQualityStore()

	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"cloud", "local"})
	intent.Constraints.SoftLimitHint = true
	r := NewSchedulerReconciler(lookup, store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if intent.SelectedBackend != "local" {
		t.Fatalf("expected softLimitZeroCostBonus to tip selection to local, got %q", intent.SelectedBackend)
	}
}

func TestSchedulerReconciler_EmptyCandidateSetLeavesSelectionUnset(t *testing.T) {
	lookup := newFakeBackendLookup()
	store := newFakeQualityStore()
	intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, nil)

	r := NewSchedulerReconciler(lookup, store)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if intent.SelectedBackend != "" {
		t.Fatalf("expected no selection, got %q", intent.SelectedBackend)
	}
}

func TestSchedulerReconciler_AffinityBonusIsDeterministic(t *testing.T) {
	lookup := newFakeBackendLookup()
	addScoredBackend(lookup, "r1", 1, domain.BackendTypeLocalSingleHost, domain.PrivacyZoneRestricted)
	addScoredBackend(lookup, "r2", 1, domain.BackendTypeLocalSingleHost, domain.PrivacyZoneRestricted)
	store := newFakeQualityStore()

	var first string
	for i := 0; i < 5; i++ {
		intent := domain.NewRoutingIntent("req-1", "m", "m", domain.Requirements{}, []string{"r1", "r2"})
		intent.AffinityKey = "conversation-42"
		r := NewSchedulerReconciler(lookup, store)
		if err := r.Reconcile(intent); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if first == "" {
			first = intent.SelectedBackend
		} else if intent.SelectedBackend != first {
			t.Fatalf("expected deterministic affinity selection, got %q then %q", first, intent.SelectedBackend)
		}
	}
}
