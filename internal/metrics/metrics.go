// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the routing core's own Prometheus counters and
// histograms. The exposition endpoint itself is an external collaborator
// per spec.md §1; this package only emits the raw series the exporter
// reads, grounded on the teacher's package-level prometheus.NewCounterVec
// block and its init()-time prometheus.MustRegister calls
// (platform/orchestrator/run.go).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	routeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_route_decisions_total",
			Help: "Total number of terminal routing decisions by outcome.",
		},
		[]string{"decision"}, // route | queue | reject
	)

	rejectionsByReasonTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_rejections_total",
			Help: "Total number of candidate exclusions by reconciler and reason code.",
		},
		[]string{"reconciler", "reason_code"},
	)

	reconcilerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_reconciler_duration_microseconds",
			Help:    "Per-reconciler wall-clock duration in microseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
		},
		[]string{"reconciler"},
	)

	fallbackAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_fallback_attempts_total",
			Help: "Total number of Fallback Orchestrator chain-entry attempts.",
		},
		[]string{"outcome"}, // succeeded | skipped_downgrade | exhausted
	)

	budgetSpendingCents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexus_budget_spending_cents",
			Help: "Current monthly spending counter, in cents.",
		},
	)

	backendPendingRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexus_backend_pending_requests",
			Help: "Current in-flight request count per backend.",
		},
		[]string{"backend_id"},
	)
)

func init() {
	prometheus.MustRegister(routeDecisionsTotal)
	prometheus.MustRegister(rejectionsByReasonTotal)
	prometheus.MustRegister(reconcilerDuration)
	prometheus.MustRegister(fallbackAttemptsTotal)
	prometheus.MustRegister(budgetSpendingCents)
	prometheus.MustRegister(backendPendingRequests)
}

// ObserveDecision increments the terminal decision counter.
func ObserveDecision(decision string) {
	routeDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveRejection increments the per-reconciler rejection-reason counter.
func ObserveRejection(reconciler, reasonCode string) {
	rejectionsByReasonTotal.WithLabelValues(reconciler, reasonCode).Inc()
}

// ObserveReconcilerDuration records one reconciler invocation's latency.
func ObserveReconcilerDuration(reconciler string, microseconds float64) {
	reconcilerDuration.WithLabelValues(reconciler).Observe(microseconds)
}

// ObserveFallbackAttempt increments the fallback outcome counter.
func ObserveFallbackAttempt(outcome string) {
	fallbackAttemptsTotal.WithLabelValues(outcome).Inc()
}

// SetBudgetSpending updates the budget spending gauge.
func SetBudgetSpending(cents int64) {
	budgetSpendingCents.Set(float64(cents))
}

// SetBackendPending updates a single backend's in-flight gauge.
func SetBackendPending(backendID string, pending int64) {
	backendPendingRequests.WithLabelValues(backendID).Set(float64(pending))
}
