// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package domain

// TierMode is the client-requested tier-enforcement stance parsed from
// request headers. Strict forbids lower tiers; flexible allows higher-tier
// substitution only, never a downgrade. Strict wins on conflict and is the
// default.
type TierMode string

const (
	TierModeStrict   TierMode = "strict"
	TierModeFlexible TierMode = "flexible"
)

// Requirements is the per-request derived bundle the Request Analyzer
// produces. It is a pure value: no interior mutability, no pointer
// receivers that mutate state.
type Requirements struct {
	RequestedModel   string
	EstimatedTokens  int
	NeedsVision      bool
	NeedsTools       bool
	NeedsJSONMode    bool
	PrefersStreaming bool
	TierEnforcement  TierMode
	// HasHistory is true when the conversation carries more than a single
	// user turn. Consumed only by the Privacy Reconciler's fresh-only
	// overflow check (spec §4.4) — never relaxes a privacy constraint by
	// itself.
	HasHistory bool
}

// EstimatedOutputTokens applies the documented heuristic (0.5x input) used
// by the Budget Reconciler's ex-ante cost estimate.
func (r Requirements) EstimatedOutputTokens() int {
	return int(0.5 * float64(r.EstimatedTokens))
}
