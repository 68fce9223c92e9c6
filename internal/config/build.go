// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strconv"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/logger"
	"nexus/internal/policy"
	"nexus/internal/registry"
)

// Built bundles the live collaborators materialized from a Config, ready
// to pass into routing.Config.
type Built struct {
	Registry        *registry.Registry
	Policies        *policy.Set
	Aliases         map[string]string
	Fallbacks       map[string][]string
	MonthlyLimitCents    int64
	SoftLimitPercent     int
	HardLimitAction      domain.HardLimitAction
	BillingCycleStartDay int
	QualityThreshold     float64
}

// Build validates and materializes a Config into the domain/registry/
// policy objects the Router is assembled from. Invalid glob patterns are
// fatal (spec §7 item 4, "refuse to start"); fallback chains referencing
// a model with no currently-registered backend only warn, since backends
// may register after startup (SPEC_FULL.md §2C).
func Build(cfg *Config) (*Built, error) {
	log := logger.New("config-build")

	reg := registry.New()
	for _, spec := range cfg.Backends {
		backend, err := buildBackend(spec)
		if err != nil {
			return nil, &ConfigError{Key: "backend." + spec.ID, Cause: err}
		}
		reg.Register(backend)
	}

	policies := make([]domain.TrafficPolicy, 0, len(cfg.Routing.Policies))
	for pattern, spec := range cfg.Routing.Policies {
		policies = append(policies, buildPolicy(pattern, spec))
	}
	policySet, err := policy.NewSet(policies)
	if err != nil {
		return nil, &ConfigError{Key: "routing.policies", Cause: err}
	}

	validateAliasHops(cfg.Routing.Aliases, log)
	validateFallbackTargets(cfg.Routing.Fallbacks, reg, log)

	action := domain.HardLimitAction(cfg.Budget.HardLimitAction)
	switch action {
	case domain.HardLimitLocalOnly, domain.HardLimitReject, domain.HardLimitQueue:
	default:
		return nil, &ConfigError{Key: "budget.hard_limit_action", Cause: fmt.Errorf("unrecognized value %q", cfg.Budget.HardLimitAction)}
	}

	return &Built{
		Registry:             reg,
		Policies:             policySet,
		Aliases:              cfg.Routing.Aliases,
		Fallbacks:            cfg.Routing.Fallbacks,
		MonthlyLimitCents:    dollarsToCents(cfg.Budget.MonthlyLimit),
		SoftLimitPercent:     cfg.Budget.SoftLimitPercent,
		HardLimitAction:      action,
		BillingCycleStartDay: cfg.Budget.BillingCycleStartDay,
		QualityThreshold:     cfg.Quality.ErrorRateThreshold,
	}, nil
}

func dollarsToCents(dollars float64) int64 {
	return int64(dollars*100 + 0.5)
}

func buildBackend(spec BackendSpec) (*domain.Backend, error) {
	id := spec.ID
	if id == "" {
		id = spec.Name
	}
	if id == "" {
		return nil, fmt.Errorf("backend entry missing both id and name")
	}
	typ := domain.BackendType(spec.Type)
	switch typ {
	case domain.BackendTypeLocalSingleHost, domain.BackendTypeLocalServingFramework,
		domain.BackendTypeDesktopRunner, domain.BackendTypeDistributedFabric, domain.BackendTypeCloudVendor:
	default:
		return nil, fmt.Errorf("unrecognized backend type %q", spec.Type)
	}

	if err := formatAPIKeyEnv(spec.APIKeyEnv); err != nil {
		return nil, err
	}

	b := domain.NewBackend(id, spec.Name, spec.URL, typ)
	b.Priority = spec.Priority

	zone := domain.PrivacyZone(spec.Zone)
	if zone == "" {
		zone = typ.DefaultPrivacyZone()
	}
	b.PrivacyZone = zone

	b.CapabilityTier = domain.CapabilityTier{
		Scalar:    spec.Tier,
		Reasoning: spec.CapabilityTier.Reasoning,
		Coding:    spec.CapabilityTier.Coding,
		Vision:    spec.CapabilityTier.Vision,
		Tools:     spec.CapabilityTier.Tools,
	}

	for _, m := range spec.Models {
		contextLength := m.ContextLength
		if contextLength == 0 {
			contextLength = spec.CapabilityTier.ContextWindow
		}
		b.Models = append(b.Models, domain.Model{
			ID:               m.ID,
			ContextLength:    contextLength,
			SupportsVision:   m.SupportsVision,
			SupportsTools:    m.SupportsTools,
			SupportsJSONMode: m.SupportsJSONMode,
			Provider:         m.Provider,
		})
	}
	return b, nil
}

func buildPolicy(pattern string, spec PolicySpec) domain.TrafficPolicy {
	p := domain.TrafficPolicy{
		Pattern:      pattern,
		OverflowMode: domain.OverflowMode(spec.OverflowMode),
		CapabilityMinima: domain.CapabilityMinima{
			MinContextWindow: spec.MinContextWindow,
			VisionRequired:   spec.VisionRequired,
			ToolsRequired:    spec.ToolsRequired,
		},
	}
	if spec.Privacy != "" {
		zone := domain.PrivacyZone(spec.Privacy)
		p.PrivacyConstraint = &zone
	}
	if spec.MinTier > 0 || spec.MinReasoning > 0 || spec.MinCoding > 0 {
		tier := domain.CapabilityTier{
			Scalar:    spec.MinTier,
			Reasoning: spec.MinReasoning,
			Coding:    spec.MinCoding,
		}
		p.MinCapabilityTier = &tier
	}
	return p
}

const maxAliasHops = 3

// validateAliasHops warns (never fails) about alias chains longer than
// the fixed 3-hop resolution cap, per SPEC_FULL.md §2C: a chain beyond
// the cap still resolves, just to an intermediate hop rather than the
// operator's intended final target.
func validateAliasHops(aliases map[string]string, log *logger.Logger) {
	for from := range aliases {
		seen := map[string]bool{from: true}
		cur := from
		hops := 0
		for {
			next, ok := aliases[cur]
			if !ok {
				break
			}
			hops++
			if seen[next] {
				log.Warn("", "", "alias cycle detected", map[string]interface{}{"from": from, "at": next})
				break
			}
			if hops > maxAliasHops {
				log.Warn("", "", "alias chain exceeds resolution cap, extra hops will be ignored at request time",
					map[string]interface{}{"from": from, "cap": maxAliasHops})
				break
			}
			seen[next] = true
			cur = next
		}
	}
}

// validateFallbackTargets warns when a fallback chain names a model with
// no currently-registered backend — not fatal, since backends can
// register after startup.
func validateFallbackTargets(fallbacks map[string][]string, reg *registry.Registry, log *logger.Logger) {
	for model, chain := range fallbacks {
		for _, alt := range chain {
			if len(reg.BackendsForModel(alt)) == 0 {
				log.Warn("", "", "fallback chain references model with no registered backend yet",
					map[string]interface{}{"model": model, "fallback_target": alt})
			}
		}
	}
}

// formatAPIKeyEnv is a small helper kept for parity with the teacher's
// api_key_env indirection convention; Nexus's backends are already-running
// inference servers reached over plain HTTP (spec §1), so the key itself
// is read by the egress layer, not stored on Backend — this only
// validates the env var name is well-formed when present.
func formatAPIKeyEnv(name string) error {
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("api_key_env %q contains whitespace", name)
	}
	if _, err := strconv.Unquote(`"` + name + `"`); err != nil {
		return fmt.Errorf("api_key_env %q is not a valid environment variable name", name)
	}
	return nil
}
