// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package fallback owns the per-model alternative chain and retries the
// full reconciler pipeline against each chain entry in turn when the
// original resolved model yields Reject. Grounded on the teacher
// lineage's LLMRouter.getFallbackProvider retry loop
// (orchestrator/llm_router.go), generalized from "pick any other healthy
// provider" to "walk a configured, ordered, per-model chain" per spec
// §4.9.
package fallback

import (
	"nexus/internal/domain"
	"nexus/internal/logger"
	"nexus/internal/policy"
	"nexus/internal/reconcile"
)

// BackendCatalog resolves the starting candidate set for a model: every
// backend currently serving it, filtered to healthy only (the Analyzer /
// routing wiring does the same filtering for the original model).
type BackendCatalog interface {
	BackendsForModel(modelID string) []*domain.Backend
}

// Orchestrator holds the configured fallback chains and retries the
// reconciler pipeline against each entry until one yields a selection or
// the chain is exhausted.
type Orchestrator struct {
	chains   map[string][]string
	policies *policy.Set
	catalog  BackendCatalog
	pipeline *reconcile.Pipeline
	log      *logger.Logger
}

// New constructs an Orchestrator. pipeline is the same reconcile.Pipeline
// used for the primary attempt — reused unchanged for every fallback
// entry, per spec §4.9's "retry the pipeline" instruction.
func New(chains map[string][]string, policies *policy.Set, catalog BackendCatalog, pipeline *reconcile.Pipeline) *Orchestrator {
	if chains == nil {
		chains = make(map[string][]string)
	}
	return &Orchestrator{chains: chains, policies: policies, catalog: catalog, pipeline: pipeline, log: logger.New("fallback-orchestrator")}
}

// Resolve retries intent's resolved model's fallback chain, in order,
// until one attempt selects a backend or the chain is exhausted. It
// mutates and returns the Intent that ultimately carries the outcome: the
// original intent if no chain exists or every entry failed, or a fresh
// per-entry Intent (with FallbackModelUsed set) on success.
//
// Callers should invoke this only after running the primary pipeline
// against intent.ResolvedModel and observing an empty SelectedBackend.
func (o *Orchestrator) Resolve(intent *domain.RoutingIntent) (*domain.RoutingIntent, error) {
	chain, ok := o.chains[intent.ResolvedModel]
	if !ok || len(chain) == 0 {
		return intent, nil
	}

	originalMinTier := o.requiredTier(intent.ResolvedModel)

	for _, altModel := range chain {
		if intent.Requirements.TierEnforcement == domain.TierModeStrict && o.isDowngrade(altModel, originalMinTier) {
			o.log.Info("", intent.RequestID, "fallback chain entry skipped: would downgrade tier under strict mode", map[string]interface{}{
				"model": altModel,
			})
			continue
		}

		candidates := o.healthyCandidateIDs(altModel)
		if len(candidates) == 0 {
			continue
		}

		attempt := domain.NewRoutingIntent(intent.RequestID, intent.RequestedModel, altModel, intent.Requirements, candidates)
		if err := o.pipeline.Run(attempt); err != nil {
			return intent, err
		}
		if attempt.SelectedBackend != "" {
			attempt.FallbackModelUsed = altModel
			return attempt, nil
		}
	}

	return intent, nil
}

func (o *Orchestrator) healthyCandidateIDs(model string) []string {
	backends := o.catalog.BackendsForModel(model)
	ids := make([]string, 0, len(backends))
	for _, b := range backends {
		if b.Health() == domain.HealthHealthy {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// requiredTier returns the policy-configured minimum tier for model, or
// the zero CapabilityTier if no policy (or no tier floor) applies.
func (o *Orchestrator) requiredTier(model string) domain.CapabilityTier {
	if o.policies == nil {
		return domain.CapabilityTier{}
	}
	pol, ok := o.policies.Match(model)
	if !ok || pol.MinCapabilityTier == nil {
		return domain.CapabilityTier{}
	}
	return *pol.MinCapabilityTier
}

// isDowngrade reports whether altModel's configured minimum tier is lower
// than original — the strict-mode "never downgrade" check from spec §4.9.
func (o *Orchestrator) isDowngrade(altModel string, original domain.CapabilityTier) bool {
	alt := o.requiredTier(altModel)
	return !alt.Meets(original)
}
