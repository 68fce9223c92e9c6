// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package domain

// HardLimitAction is the configured behavior once monthly spending
// reaches 100% of the budget limit.
type HardLimitAction string

const (
	HardLimitLocalOnly HardLimitAction = "local-only"
	HardLimitReject    HardLimitAction = "reject"
	HardLimitQueue     HardLimitAction = "queue"
)

// BudgetStatusClass is the pure classification of the spending counter
// against the configured limit and soft-limit percentage.
type BudgetStatusClass string

const (
	BudgetNormal    BudgetStatusClass = "normal"
	BudgetSoftLimit BudgetStatusClass = "soft_limit"
	BudgetHardLimit BudgetStatusClass = "hard_limit"
)

// ClassifyBudget is a pure function of the spending counter, monthly
// limit, and soft-limit percentage. A zero or negative limit means the
// budget is disabled (always Normal).
func ClassifyBudget(spendingCents, limitCents int64, softLimitPercent int) BudgetStatusClass {
	if limitCents <= 0 {
		return BudgetNormal
	}
	pct := float64(spendingCents) / float64(limitCents) * 100.0
	switch {
	case pct >= 100.0:
		return BudgetHardLimit
	case pct >= float64(softLimitPercent):
		return BudgetSoftLimit
	default:
		return BudgetNormal
	}
}

// CostEstimate is the ex-ante cost computed by the Budget Reconciler for
// one candidate.
type CostEstimate struct {
	InputTokens  int
	OutputTokens int
	CostCents    int64
}
