// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"nexus/internal/domain"
	"nexus/internal/logger"
	"nexus/internal/policy"
)

// TierReconciler applies the hard capability filters and then the tier
// floor from the matched Traffic Policy (spec §4.6). Strict and flexible
// enforcement apply the identical filter here — flexible only permits a
// candidate whose tier exceeds the requirement, it never lowers the
// requirement itself, so there is nothing for this reconciler to branch
// on beyond what CapabilityTier.Meets already expresses.
type TierReconciler struct {
	policies *policy.Set
	backends BackendLookup
	log      *logger.Logger
}

// NewTierReconciler constructs the reconciler.
func NewTierReconciler(policies *policy.Set, backends BackendLookup) *TierReconciler {
	return &TierReconciler{policies: policies, backends: backends, log: logger.New("tier-reconciler")}
}

// Name implements Reconciler.
func (t *TierReconciler) Name() string { return "tier" }

// Reconcile implements Reconciler per spec §4.6.
func (t *TierReconciler) Reconcile(intent *domain.RoutingIntent) error {
	pol, hasPolicy := t.policies.Match(intent.ResolvedModel)

	for _, id := range append([]string{}, intent.Candidates...) {
		backend, ok := t.backends.Get(id)
		if !ok {
			continue
		}
		model, ok := backend.ModelByID(intent.ResolvedModel)
		if !ok {
			// No model record to check structural capabilities against.
			// Candidates normally come from Registry.BackendsForModel, so
			// this reconciler treats an unknown model as passing the
			// structural checks and lets tier filtering apply below.
			model = domain.Model{}
		}

		if intent.Requirements.NeedsVision && !model.SupportsVision {
			intent.Exclude(id, t.Name(), domain.MissingCapability{Capability: "vision"}, "use a vision-capable model or backend")
			continue
		}
		if intent.Requirements.NeedsTools && !model.SupportsTools {
			intent.Exclude(id, t.Name(), domain.MissingCapability{Capability: "tools"}, "use a tool-calling-capable model or backend")
			continue
		}
		if intent.Requirements.NeedsJSONMode && !model.SupportsJSONMode {
			intent.Exclude(id, t.Name(), domain.MissingCapability{Capability: "json"}, "use a JSON-mode-capable model or backend")
			continue
		}
		if model.ContextLength > 0 && intent.Requirements.EstimatedTokens > model.ContextLength {
			intent.Exclude(id, t.Name(), domain.ContextWindowTooSmall{
				Required: intent.Requirements.EstimatedTokens,
				Actual:   model.ContextLength,
			}, "use a model with a larger context window")
			continue
		}

		if hasPolicy && pol.CapabilityMinima.MinContextWindow > 0 && model.ContextLength < pol.CapabilityMinima.MinContextWindow {
			intent.Exclude(id, t.Name(), domain.ContextWindowTooSmall{
				Required: pol.CapabilityMinima.MinContextWindow,
				Actual:   model.ContextLength,
			}, "use a model meeting the policy's minimum context window")
			continue
		}
		if hasPolicy && pol.CapabilityMinima.VisionRequired && !model.SupportsVision {
			intent.Exclude(id, t.Name(), domain.MissingCapability{Capability: "vision"}, "use a vision-capable model")
			continue
		}
		if hasPolicy && pol.CapabilityMinima.ToolsRequired && !model.SupportsTools {
			intent.Exclude(id, t.Name(), domain.MissingCapability{Capability: "tools"}, "use a tool-calling-capable model")
			continue
		}
	}

	if !hasPolicy || pol.MinCapabilityTier == nil {
		return nil
	}

	required := *pol.MinCapabilityTier
	intent.TightenMinTier(required)

	for _, id := range append([]string{}, intent.Candidates...) {
		backend, ok := t.backends.Get(id)
		if !ok {
			continue
		}
		if !backend.CapabilityTier.Meets(required) {
			dim, req, actual := tierShortfall(backend.CapabilityTier, required)
			intent.Exclude(id, t.Name(), domain.TierInsufficient{
				Dimension: dim,
				Required:  req,
				Actual:    actual,
			}, "use a backend meeting the required capability tier")
		}
	}
	return nil
}

// tierShortfall identifies which dimension first fails to meet the
// required minimum, for attribution in the rejection reason.
func tierShortfall(actual, required domain.CapabilityTier) (dimension string, req, have int) {
	if required.Reasoning == 0 && required.Coding == 0 && required.Vision == 0 && required.Tools == 0 {
		return "scalar", required.Scalar, actual.Scalar
	}
	if required.Reasoning > 0 && actual.Reasoning < required.Reasoning {
		return "reasoning", required.Reasoning, actual.Reasoning
	}
	if required.Coding > 0 && actual.Coding < required.Coding {
		return "coding", required.Coding, actual.Coding
	}
	if required.Vision > 0 && actual.Vision < required.Vision {
		return "vision", required.Vision, actual.Vision
	}
	if required.Tools > 0 && actual.Tools < required.Tools {
		return "tools", required.Tools, actual.Tools
	}
	return "scalar", required.Scalar, actual.Scalar
}
