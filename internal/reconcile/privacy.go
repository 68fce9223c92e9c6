// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"nexus/internal/domain"
	"nexus/internal/logger"
	"nexus/internal/policy"
)

// BackendLookup is the minimal read-only dependency reconcilers need on
// the Registry. Kept as a small interface (rather than importing
// internal/registry directly) so this package only depends on what it
// uses; *registry.Registry satisfies it.
type BackendLookup interface {
	Get(id string) (*domain.Backend, bool)
}

// PrivacyReconciler is the first narrowing stage (spec §4.4). It is the
// sole authority on privacy: no client-supplied header is ever read here,
// satisfying the "privacy authority" testable property (spec §8) — zone
// requirements come only from TrafficPolicy and Backend.PrivacyZone.
type PrivacyReconciler struct {
	policies *policy.Set
	backends BackendLookup
	log      *logger.Logger
}

// NewPrivacyReconciler constructs the reconciler from a compiled policy
// set and a backend lookup.
func NewPrivacyReconciler(policies *policy.Set, backends BackendLookup) *PrivacyReconciler {
	return &PrivacyReconciler{policies: policies, backends: backends, log: logger.New("privacy-reconciler")}
}

// Name implements Reconciler.
func (p *PrivacyReconciler) Name() string { return "privacy" }

// Reconcile implements Reconciler per spec §4.4.
func (p *PrivacyReconciler) Reconcile(intent *domain.RoutingIntent) error {
	pol, ok := p.policies.Match(intent.ResolvedModel)
	if !ok || pol.PrivacyConstraint == nil || *pol.PrivacyConstraint != domain.PrivacyZoneRestricted {
		return nil // no restriction configured for this model; nothing to tighten
	}

	restricted, open := p.partitionByZone(intent.Candidates)

	if len(restricted) > 0 {
		intent.TightenPrivacy(domain.PrivacyZoneRestricted)
		for _, id := range open {
			intent.Exclude(id, p.Name(), domain.PrivacyZoneMismatch{
				Required: domain.PrivacyZoneRestricted,
				Actual:   domain.PrivacyZoneOpen,
			}, "use a restricted-zone backend for this model")
		}
		return nil
	}

	// No restricted candidate exists at all. Overflow is decided here,
	// before any exclusion, so the monotonicity contract is never
	// violated by "excluding then un-excluding".
	if pol.OverflowMode == domain.OverflowFreshOnly && !intent.Requirements.HasHistory {
		intent.Constraints.OverflowApplied = true
		return nil // cross-zone overflow allowed; candidates (all open) remain untouched
	}

	if pol.OverflowMode == domain.OverflowFreshOnly && intent.Requirements.HasHistory {
		for _, id := range open {
			intent.Exclude(id, p.Name(), domain.OverflowBlockedWithHistory{}, "retry without conversation history, or use a restricted backend")
		}
		return nil
	}

	// block-entirely (or no overflow mode configured): exclude every
	// open candidate; the required restricted backend simply does not
	// exist.
	intent.TightenPrivacy(domain.PrivacyZoneRestricted)
	for _, id := range open {
		intent.Exclude(id, p.Name(), domain.PrivacyZoneMismatch{
			Required: domain.PrivacyZoneRestricted,
			Actual:   domain.PrivacyZoneOpen,
		}, "register a restricted-zone backend for this model")
	}
	return nil
}

func (p *PrivacyReconciler) partitionByZone(candidates []string) (restricted, open []string) {
	for _, id := range candidates {
		b, ok := p.backends.Get(id)
		if !ok {
			continue
		}
		if b.PrivacyZone == domain.PrivacyZoneRestricted {
			restricted = append(restricted, id)
		} else {
			open = append(open, id)
		}
	}
	return restricted, open
}
