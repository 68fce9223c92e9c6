// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"nexus/internal/domain"
	"nexus/internal/policy"
)

type fakeBackendLookup struct {
	backends map[string]*domain.Backend
}

func newFakeBackendLookup() *fakeBackendLookup {
	return &fakeBackendLookup{backends: make(map[string]*domain.Backend)}
}

func (f *fakeBackendLookup) add(id string, zone domain.PrivacyZone) {
	b := domain.NewBackend(id, id, "http://"+id, domain.BackendTypeCloudVendor)
	b.PrivacyZone = zone
	f.backends[id] = b
}

func (f *fakeBackendLookup) Get(id string) (*domain.Backend, bool) {
	b, ok := f.backends[id]
	return b, ok
}

func restrictedPolicy(t *testing.T, overflow domain.OverflowMode) *policy.Set {
	t.Helper()
	zone := domain.PrivacyZoneRestricted
	set, err := policy.NewSet([]domain.TrafficPolicy{
		{Pattern: "secure-*", PrivacyConstraint: &zone, OverflowMode: overflow},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func newIntent(candidates []string, hasHistory bool) *domain.RoutingIntent {
	return domain.NewRoutingIntent("req-1", "secure-model", "secure-model", domain.Requirements{HasHistory: hasHistory}, candidates)
}

func TestPrivacyReconciler_NoPolicyIsNoOp(t *testing.T) {
	zone := domain.PrivacyZoneRestricted
	set, err := policy.NewSet([]domain.TrafficPolicy{
		{Pattern: "other-*", PrivacyConstraint: &zone},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	lookup := newFakeBackendLookup()
	lookup.add("open-1", domain.PrivacyZoneOpen)
	intent := newIntent([]string{"open-1"}, false)

	r := NewPrivacyReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 1 || len(intent.Excluded) != 0 {
		t.Fatalf("expected no-op, got candidates=%v excluded=%v", intent.Candidates, intent.Excluded)
	}
	if intent.Constraints.PrivacyConstraint != nil {
		t.Fatal("expected no privacy constraint to be set")
	}
}

func TestPrivacyReconciler_RestrictedCandidateExcludesOpen(t *testing.T) {
	set := restrictedPolicy(t, domain.OverflowBlockEntirely)
	lookup := newFakeBackendLookup()
	lookup.add("restricted-1", domain.PrivacyZoneRestricted)
	lookup.add("open-1", domain.PrivacyZoneOpen)
	intent := newIntent([]string{"restricted-1", "open-1"}, false)

	r := NewPrivacyReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 1 || intent.Candidates[0] != "restricted-1" {
		t.Fatalf("expected only restricted-1 to remain, got %v", intent.Candidates)
	}
	if len(intent.Excluded) != 1 || intent.Excluded[0] != "open-1" {
		t.Fatalf("expected open-1 excluded, got %v", intent.Excluded)
	}
	if intent.Constraints.PrivacyConstraint == nil || *intent.Constraints.PrivacyConstraint != domain.PrivacyZoneRestricted {
		t.Fatal("expected privacy constraint tightened to restricted")
	}
	if err := intent.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}
}

func TestPrivacyReconciler_FreshOnlyOverflowWithNoHistoryLeavesCandidatesUntouched(t *testing.T) {
	set := restrictedPolicy(t, domain.OverflowFreshOnly)
	lookup := newFakeBackendLookup()
	lookup.add("open-1", domain.PrivacyZoneOpen)
	lookup.add("open-2", domain.PrivacyZoneOpen)
	intent := newIntent([]string{"open-1", "open-2"}, false)

	r := NewPrivacyReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 2 || len(intent.Excluded) != 0 {
		t.Fatalf("expected candidates untouched, got candidates=%v excluded=%v", intent.Candidates, intent.Excluded)
	}
	if !intent.Constraints.OverflowApplied {
		t.Fatal("expected OverflowApplied to be set")
	}
}

func TestPrivacyReconciler_FreshOnlyOverflowWithHistoryExcludesAll(t *testing.T) {
	set := restrictedPolicy(t, domain.OverflowFreshOnly)
	lookup := newFakeBackendLookup()
	lookup.add("open-1", domain.PrivacyZoneOpen)
	intent := newIntent([]string{"open-1"}, true)

	r := NewPrivacyReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 0 {
		t.Fatalf("expected candidate excluded, got %v", intent.Candidates)
	}
	if len(intent.RejectionReasons) != 1 {
		t.Fatalf("expected 1 rejection reason, got %d", len(intent.RejectionReasons))
	}
	if intent.RejectionReasons[0].Reason.Code() != "overflow_blocked_with_history" {
		t.Fatalf("expected overflow_blocked_with_history, got %s", intent.RejectionReasons[0].Reason.Code())
	}
	if intent.Constraints.OverflowApplied {
		t.Fatal("expected OverflowApplied to remain false when overflow is blocked")
	}
}

func TestPrivacyReconciler_BlockEntirelyExcludesAllOpenWhenNoRestrictedExists(t *testing.T) {
	set := restrictedPolicy(t, domain.OverflowBlockEntirely)
	lookup := newFakeBackendLookup()
	lookup.add("open-1", domain.PrivacyZoneOpen)
	intent := newIntent([]string{"open-1"}, false)

	r := NewPrivacyReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 0 {
		t.Fatalf("expected all candidates excluded, got %v", intent.Candidates)
	}
	if intent.RejectionReasons[0].Reason.Code() != "privacy_zone_mismatch" {
		t.Fatalf("expected privacy_zone_mismatch, got %s", intent.RejectionReasons[0].Reason.Code())
	}
}

func TestPrivacyReconciler_NeverConsultsRequestHeaders(t *testing.T) {
	// Requirements carries no header-derived privacy field at all: the
	// Intent/Requirements types have nothing a client header could set to
	// influence this reconciler, which is the structural enforcement of
	// the privacy-authority property (spec §8).
	set := restrictedPolicy(t, domain.OverflowBlockEntirely)
	lookup := newFakeBackendLookup()
	lookup.add("restricted-1", domain.PrivacyZoneRestricted)
	intent := newIntent([]string{"restricted-1"}, false)

	r := NewPrivacyReconciler(set, lookup)
	if err := r.Reconcile(intent); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(intent.Candidates) != 1 {
		t.Fatalf("expected restricted-1 to remain a candidate, got %v", intent.Candidates)
	}
}
