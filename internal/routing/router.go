// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package routing wires the Request Analyzer, the reconciler pipeline,
// and the Fallback Orchestrator into one entrypoint, and encodes the
// resulting RoutingIntent into the external Route/Queue/Reject contract
// (spec §6). Grounded on the teacher lineage's LLMRouter.RouteRequest,
// which plays the same "one call in, one decision out" role for provider
// selection.
package routing

import (
	"nexus/internal/analyzer"
	"nexus/internal/audit"
	"nexus/internal/budget"
	"nexus/internal/domain"
	"nexus/internal/fallback"
	"nexus/internal/metrics"
	"nexus/internal/policy"
	"nexus/internal/pricing"
	"nexus/internal/quality"
	"nexus/internal/reconcile"
	"nexus/internal/registry"
)

// Router is the top-level entrypoint the HTTP surface calls once per
// request. It owns no mutable routing state itself — everything it reads
// is one of the already-concurrency-safe collaborators (Registry, Quality
// Store, Budget State, Pricing Registry).
type Router struct {
	registry   *registry.Registry
	policies   *policy.Set
	aliases    map[string]string
	pipeline   *reconcile.Pipeline
	fallback   *fallback.Orchestrator
	qualityStore *quality.Store
	budgetState  *budget.State
	pricing      *pricing.Registry
	auditLogger  *audit.Logger
}

// Config bundles the collaborators a Router is built from.
type Config struct {
	Registry    *registry.Registry
	Policies    *policy.Set
	Aliases     map[string]string
	Fallbacks   map[string][]string
	QualityStore *quality.Store
	BudgetState  *budget.State
	Pricing      *pricing.Registry
	QualityThreshold float64
	AuditLogger      *audit.Logger
}

// New assembles the reconciler pipeline in spec order (Privacy, Budget,
// Tier, Quality, Scheduler) and wires the Fallback Orchestrator around it.
func New(cfg Config) *Router {
	threshold := cfg.QualityThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	privacyStage := reconcile.NewPrivacyReconciler(cfg.Policies, cfg.Registry)
	budgetStage := reconcile.NewBudgetReconciler(cfg.BudgetState, cfg.Pricing, cfg.BudgetState.HardLimitAction, cfg.Registry)
	tierStage := reconcile.NewTierReconciler(cfg.Policies, cfg.Registry)
	qualityStage := reconcile.NewQualityReconcilerWithThreshold(cfg.QualityStore, threshold)
	schedulerStage := reconcile.NewSchedulerReconciler(cfg.Registry, cfg.QualityStore)

	pipeline := reconcile.NewPipeline(privacyStage, budgetStage, tierStage, qualityStage, schedulerStage)
	fb := fallback.New(cfg.Fallbacks, cfg.Policies, cfg.Registry, pipeline)

	return &Router{
		registry:     cfg.Registry,
		policies:     cfg.Policies,
		aliases:      cfg.Aliases,
		pipeline:     pipeline,
		fallback:     fb,
		qualityStore: cfg.QualityStore,
		budgetState:  cfg.BudgetState,
		pricing:      cfg.Pricing,
		auditLogger:  cfg.AuditLogger,
	}
}

// Route runs the full control flow from spec §2: analyze, build the
// Intent against all healthy candidates for the resolved model, run the
// pipeline, retry via fallback on an empty selection, and encode the
// result.
func (r *Router) Route(requestID string, req analyzer.ChatRequest, tierMode domain.TierMode, affinityKey string) *Outcome {
	resolvedModel, reqs := analyzer.Analyze(req, r.aliases, tierMode)

	candidates := r.healthyCandidateIDs(resolvedModel)
	intent := domain.NewRoutingIntent(requestID, req.Model, resolvedModel, reqs, candidates)
	intent.AffinityKey = affinityKey

	if len(candidates) == 0 {
		intent.RejectionReasons = append(intent.RejectionReasons, domain.RejectionRecord{
			AgentID:         "",
			ReconcilerName:  "request-analyzer",
			Reason:          domain.ModelNotServed{Model: resolvedModel},
			SuggestedAction: "register a backend serving this model, or configure an alias/fallback",
		})
	} else if err := r.pipeline.Run(intent); err != nil {
		return encodeFatal(intent, err)
	}

	final := intent
	if intent.SelectedBackend == "" {
		fallbackIntent, err := r.fallback.Resolve(intent)
		if err != nil {
			return encodeFatal(intent, err)
		}
		if fallbackIntent.SelectedBackend != "" {
			metrics.ObserveFallbackAttempt("succeeded")
		} else {
			metrics.ObserveFallbackAttempt("exhausted")
		}
		final = fallbackIntent
	}

	outcome := Encode(final, r.registry, r.pricing, r.budgetState.HardLimitAction)
	metrics.ObserveDecision(string(outcome.Decision))
	if r.auditLogger != nil {
		r.auditLogger.Record(audit.NewEntryFromIntent(final, string(outcome.Decision), outcome.CostEstimate, outcome.RetryAfterSeconds))
	}
	return outcome
}

// Finalize records the realized outcome of a committed route: decrements
// the backend's pending counter, records a Quality Store outcome, and (if
// the call succeeded on a cloud backend) adds the route's cost estimate to
// Budget State.
// Called once the downstream backend call completes, regardless of
// success.
func (r *Router) Finalize(outcome *Outcome, success bool, ttftMs float64) {
	if outcome == nil || outcome.Backend == nil {
		return
	}
	outcome.Backend.DecrementPending()
	metrics.SetBackendPending(outcome.Backend.ID, outcome.Backend.PendingRequests())
	r.qualityStore.RecordOutcome(outcome.Backend.ID, success, ttftMs)
	if success && outcome.Backend.Type.IsCloud() {
		r.budgetState.AddSpending(outcome.CostEstimate.CostCents)
	}
	metrics.SetBudgetSpending(r.budgetState.SpendingCents())
}

func (r *Router) healthyCandidateIDs(model string) []string {
	backends := r.registry.BackendsForModel(model)
	ids := make([]string, 0, len(backends))
	for _, b := range backends {
		if b.Health() == domain.HealthHealthy {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
