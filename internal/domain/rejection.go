// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import "fmt"

// RejectionReason is a sealed sum type: every concrete variant implements
// Code (a stable machine-readable string for the error envelope), Error
// (human-readable), and the unexported marker method, so a switch over a
// RejectionReason is exhaustively checkable at review time even though Go
// has no compiler-enforced sealed interfaces.
type RejectionReason interface {
	error
	Code() string
	isRejectionReason()
}

// PrivacyZoneMismatch is raised when a candidate's configured zone cannot
// satisfy a restricted policy and no overflow applies.
type PrivacyZoneMismatch struct {
	Required PrivacyZone
	Actual   PrivacyZone
}

func (r PrivacyZoneMismatch) isRejectionReason() {}
func (r PrivacyZoneMismatch) Code() string       { return "privacy_zone_mismatch" }
func (r PrivacyZoneMismatch) Error() string {
	return fmt.Sprintf("privacy zone mismatch: required %s, backend is %s", r.Required, r.Actual)
}

// TierInsufficient is raised when a backend's capability tier does not
// meet a policy-required minimum, either on the scalar or a named
// dimension.
type TierInsufficient struct {
	Dimension string
	Required  int
	Actual    int
}

func (r TierInsufficient) isRejectionReason() {}
func (r TierInsufficient) Code() string       { return "tier_insufficient" }
func (r TierInsufficient) Error() string {
	return fmt.Sprintf("tier insufficient on %s: required %d, actual %d", r.Dimension, r.Required, r.Actual)
}

// ContextWindowTooSmall is raised when a model's declared context length
// cannot hold the estimated token count.
type ContextWindowTooSmall struct {
	Required int
	Actual   int
}

func (r ContextWindowTooSmall) isRejectionReason() {}
func (r ContextWindowTooSmall) Code() string       { return "context_window_too_small" }
func (r ContextWindowTooSmall) Error() string {
	return fmt.Sprintf("context window too small: required %d, actual %d", r.Required, r.Actual)
}

// MissingCapability is raised when a model lacks a structurally required
// capability (vision, tools, or JSON mode).
type MissingCapability struct {
	Capability string // "vision" | "tools" | "json"
}

func (r MissingCapability) isRejectionReason() {}
func (r MissingCapability) Code() string       { return "missing_capability" }
func (r MissingCapability) Error() string {
	return fmt.Sprintf("missing capability: %s", r.Capability)
}

// BudgetExhausted is raised when the hard budget limit excludes a
// candidate under the configured action.
type BudgetExhausted struct {
	Action string // HardLimitAction value
}

func (r BudgetExhausted) isRejectionReason() {}
func (r BudgetExhausted) Code() string       { return "budget_exhausted" }
func (r BudgetExhausted) Error() string {
	return fmt.Sprintf("budget exhausted: action=%s", r.Action)
}

// OverflowBlockedWithHistory is raised when fresh-only overflow would
// otherwise apply but the conversation already carries history.
type OverflowBlockedWithHistory struct{}

func (r OverflowBlockedWithHistory) isRejectionReason() {}
func (r OverflowBlockedWithHistory) Code() string       { return "overflow_blocked_with_history" }
func (r OverflowBlockedWithHistory) Error() string {
	return "cross-zone overflow blocked: conversation has history"
}

// QualityDegraded is raised when a candidate's recent error rate exceeds
// the configured threshold (only when it would not empty the candidate
// set — see the Quality Reconciler safeguard).
type QualityDegraded struct {
	ErrorRate float64
}

func (r QualityDegraded) isRejectionReason() {}
func (r QualityDegraded) Code() string       { return "quality_degraded" }
func (r QualityDegraded) Error() string {
	return fmt.Sprintf("quality degraded: error_rate=%.3f", r.ErrorRate)
}

// ModelNotServed is raised when no registered backend serves the resolved
// model at all.
type ModelNotServed struct {
	Model string
}

func (r ModelNotServed) isRejectionReason() {}
func (r ModelNotServed) Code() string       { return "model_not_served" }
func (r ModelNotServed) Error() string {
	return fmt.Sprintf("model not served: %s", r.Model)
}

// UnhealthyBackend is raised when a candidate's health status excludes it
// from scheduling.
type UnhealthyBackend struct {
	Status HealthStatus
}

func (r UnhealthyBackend) isRejectionReason() {}
func (r UnhealthyBackend) Code() string       { return "unhealthy_backend" }
func (r UnhealthyBackend) Error() string {
	return fmt.Sprintf("unhealthy backend: status=%s", r.Status)
}

// RejectionRecord attributes a RejectionReason to the agent and reconciler
// that produced it, plus an operator-facing suggested action.
type RejectionRecord struct {
	AgentID         string
	ReconcilerName  string
	Reason          RejectionReason
	SuggestedAction string
}
