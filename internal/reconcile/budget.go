// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"nexus/internal/domain"
	"nexus/internal/logger"
	"nexus/internal/pricing"
)

// BudgetReader is the read-only view of Budget State the reconciler
// needs. internal/budget.State satisfies it; this reconciler never mutates
// it — routing.Router.Finalize adds spending via AddSpending.
type BudgetReader interface {
	SpendingCents() int64
	Classify() domain.BudgetStatusClass
}

// BudgetReconciler implements spec §4.5. It never debits spending
// pre-commit — cost is added only by routing.Router.Finalize after a route.
type BudgetReconciler struct {
	state          BudgetReader
	prices         *pricing.Registry
	hardLimitAction domain.HardLimitAction
	backends       BackendLookup
	log            *logger.Logger
}

// NewBudgetReconciler constructs the reconciler.
func NewBudgetReconciler(state BudgetReader, prices *pricing.Registry, hardLimitAction domain.HardLimitAction, backends BackendLookup) *BudgetReconciler {
	return &BudgetReconciler{
		state:           state,
		prices:          prices,
		hardLimitAction: hardLimitAction,
		backends:        backends,
		log:             logger.New("budget-reconciler"),
	}
}

// Name implements Reconciler.
func (b *BudgetReconciler) Name() string { return "budget" }

// Reconcile implements Reconciler per spec §4.5.
func (b *BudgetReconciler) Reconcile(intent *domain.RoutingIntent) error {
	status := b.state.Classify()
	intent.Constraints.BudgetStatus = status

	switch status {
	case domain.BudgetNormal:
		return nil
	case domain.BudgetSoftLimit:
		intent.Constraints.SoftLimitHint = true // down-weight, never suppress (SPEC_FULL.md §9)
		return nil
	case domain.BudgetHardLimit:
		return b.applyHardLimit(intent)
	}
	return nil
}

func (b *BudgetReconciler) applyHardLimit(intent *domain.RoutingIntent) error {
	switch b.hardLimitAction {
	case domain.HardLimitReject:
		for _, id := range append([]string{}, intent.Candidates...) {
			if b.isCloudCandidate(id) {
				intent.Exclude(id, b.Name(), domain.BudgetExhausted{Action: string(domain.HardLimitReject)}, "wait for the billing cycle reset or raise the monthly limit")
			}
		}
	case domain.HardLimitLocalOnly, domain.HardLimitQueue:
		for _, id := range append([]string{}, intent.Candidates...) {
			if b.isCloudCandidate(id) {
				intent.Exclude(id, b.Name(), domain.BudgetExhausted{Action: string(b.hardLimitAction)}, "route is restricted to zero-cost backends until the next billing cycle")
			}
		}
	}
	return nil
}

func (b *BudgetReconciler) isCloudCandidate(id string) bool {
	backend, ok := b.backends.Get(id)
	if !ok {
		return false
	}
	return backend.Type.IsCloud()
}

// EstimateCost computes the ex-ante cost estimate for a candidate backend
// serving the resolved model, per spec §4.5's heuristic (output tokens =
// 0.5x input).
func EstimateCost(prices *pricing.Registry, provider, model string, reqs domain.Requirements) domain.CostEstimate {
	out := reqs.EstimatedOutputTokens()
	return domain.CostEstimate{
		InputTokens:  reqs.EstimatedTokens,
		OutputTokens: out,
		CostCents:    prices.EstimateCostCents(provider, model, reqs.EstimatedTokens, out),
	}
}
