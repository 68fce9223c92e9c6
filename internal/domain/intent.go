// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import "fmt"

// AccumulatedConstraints holds the constraint values the pipeline tightens
// as it runs. Each field starts unset (nil / zero) and, once set by a
// reconciler, may only be tightened by later reconcilers — never relaxed.
// "Tightened" for PrivacyConstraint means restricted can replace unset,
// but open can never replace restricted.
type AccumulatedConstraints struct {
	PrivacyConstraint *PrivacyZone
	MinTier           *CapabilityTier
	BudgetStatus      BudgetStatusClass
	OverflowApplied   bool
	SoftLimitHint     bool // "prefer local zero-cost" down-weight hint
}

// RoutingIntent is the shared mutable bundle carried through the
// reconciler pipeline. It is owned exclusively by the pipeline invocation
// that created it — reconcilers run strictly sequentially against one
// Intent and never hand it to each other concurrently.
//
// Invariants (see spec §3, enforced by CheckInvariants, not on every hot
// path call — see internal/reconcile for where this is exercised):
//   - Candidates ∩ Excluded = ∅
//   - every excluded agent has ≥1 matching RejectionReasons entry
//   - constraints are monotone: once set, never relaxed
type RoutingIntent struct {
	RequestID       string
	RequestedModel  string
	ResolvedModel   string
	Requirements    Requirements
	Candidates      []string
	Excluded        []string
	RejectionReasons []RejectionRecord
	Constraints     AccumulatedConstraints
	AffinityKey     string

	// FallbackModelUsed is set by the Fallback Orchestrator when a retry
	// against an alternate model chain entry produced the eventual route.
	FallbackModelUsed string

	// SelectedBackend is set by the Scheduler on a successful commit. Empty
	// means the candidate set was exhausted and the Result Encoder must
	// synthesize a Reject/Queue outcome from RejectionReasons/Constraints.
	SelectedBackend string
}

// NewRoutingIntent constructs an Intent with the given candidate set as
// the starting pool (before any reconciler has run).
func NewRoutingIntent(requestID, requestedModel, resolvedModel string, req Requirements, candidates []string) *RoutingIntent {
	cp := make([]string, len(candidates))
	copy(cp, candidates)
	return &RoutingIntent{
		RequestID:      requestID,
		RequestedModel: requestedModel,
		ResolvedModel:  resolvedModel,
		Requirements:   req,
		Candidates:     cp,
	}
}

// Exclude moves agentID from Candidates to Excluded and appends a
// rejection record. It is a no-op (idempotent) if agentID is already
// excluded. This is the only sanctioned way reconcilers shrink the
// candidate set — it never restores a previously-excluded agent.
func (i *RoutingIntent) Exclude(agentID, reconcilerName string, reason RejectionReason, suggestedAction string) {
	if i.isExcluded(agentID) {
		return
	}
	idx := -1
	for j, c := range i.Candidates {
		if c == agentID {
			idx = j
			break
		}
	}
	if idx == -1 {
		// Not a current candidate (already excluded by identity check
		// above being somehow bypassed, or never a candidate at all).
		return
	}
	i.Candidates = append(i.Candidates[:idx], i.Candidates[idx+1:]...)
	i.Excluded = append(i.Excluded, agentID)
	i.RejectionReasons = append(i.RejectionReasons, RejectionRecord{
		AgentID:         agentID,
		ReconcilerName:  reconcilerName,
		Reason:          reason,
		SuggestedAction: suggestedAction,
	})
}

func (i *RoutingIntent) isExcluded(agentID string) bool {
	for _, e := range i.Excluded {
		if e == agentID {
			return true
		}
	}
	return false
}

// TightenPrivacy sets the accumulated privacy constraint, never relaxing
// an already-restricted constraint back to open.
func (i *RoutingIntent) TightenPrivacy(z PrivacyZone) {
	if i.Constraints.PrivacyConstraint != nil && *i.Constraints.PrivacyConstraint == PrivacyZoneRestricted {
		return
	}
	zc := z
	i.Constraints.PrivacyConstraint = &zc
}

// TightenMinTier raises the accumulated minimum tier requirement; it
// never lowers a previously set minimum.
func (i *RoutingIntent) TightenMinTier(t CapabilityTier) {
	if i.Constraints.MinTier == nil {
		tc := t
		i.Constraints.MinTier = &tc
		return
	}
	cur := *i.Constraints.MinTier
	merged := CapabilityTier{
		Scalar:    maxInt(cur.Scalar, t.Scalar),
		Reasoning: maxInt(cur.Reasoning, t.Reasoning),
		Coding:    maxInt(cur.Coding, t.Coding),
		Vision:    maxInt(cur.Vision, t.Vision),
		Tools:     maxInt(cur.Tools, t.Tools),
	}
	i.Constraints.MinTier = &merged
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CheckInvariants validates the Intent's structural invariants from spec
// §3/§8. It returns an error describing the first violation found; it is
// intended for tests and debug builds, not the latency-critical hot path.
func (i *RoutingIntent) CheckInvariants() error {
	seen := make(map[string]bool, len(i.Candidates))
	for _, c := range i.Candidates {
		if seen[c] {
			return fmt.Errorf("duplicate candidate %q", c)
		}
		seen[c] = true
	}
	for _, e := range i.Excluded {
		if seen[e] {
			return fmt.Errorf("agent %q present in both candidates and excluded", e)
		}
	}
	reasonsByAgent := make(map[string]int, len(i.RejectionReasons))
	for _, r := range i.RejectionReasons {
		reasonsByAgent[r.AgentID]++
	}
	for _, e := range i.Excluded {
		if reasonsByAgent[e] == 0 {
			return fmt.Errorf("excluded agent %q has no rejection reason", e)
		}
	}
	return nil
}
