// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDecision_IncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(routeDecisionsTotal.WithLabelValues("route"))
	ObserveDecision("route")
	after := testutil.ToFloat64(routeDecisionsTotal.WithLabelValues("route"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestObserveRejection_IncrementsCounterByReconcilerAndReason(t *testing.T) {
	before := testutil.ToFloat64(rejectionsByReasonTotal.WithLabelValues("privacy", "privacy_zone_mismatch"))
	ObserveRejection("privacy", "privacy_zone_mismatch")
	after := testutil.ToFloat64(rejectionsByReasonTotal.WithLabelValues("privacy", "privacy_zone_mismatch"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestObserveReconcilerDuration_RecordsObservation(t *testing.T) {
	beforeCount := testutil.CollectAndCount(reconcilerDuration)
	ObserveReconcilerDuration("scheduler", 42.0)
	afterCount := testutil.CollectAndCount(reconcilerDuration)
	if afterCount < beforeCount {
		t.Fatalf("expected histogram series count to not decrease, got %d -> %d", beforeCount, afterCount)
	}
}

func TestObserveFallbackAttempt_IncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(fallbackAttemptsTotal.WithLabelValues("exhausted"))
	ObserveFallbackAttempt("exhausted")
	after := testutil.ToFloat64(fallbackAttemptsTotal.WithLabelValues("exhausted"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestSetBudgetSpending_SetsGaugeValue(t *testing.T) {
	SetBudgetSpending(4250)
	if got := testutil.ToFloat64(budgetSpendingCents); got != 4250 {
		t.Fatalf("expected gauge value 4250, got %v", got)
	}
}

func TestSetBackendPending_SetsGaugeValue(t *testing.T) {
	SetBackendPending("backend-1", 3)
	if got := testutil.ToFloat64(backendPendingRequests.WithLabelValues("backend-1")); got != 3 {
		t.Fatalf("expected gauge value 3, got %v", got)
	}
}
