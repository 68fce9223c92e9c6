// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy matches a resolved model name against the ordered
// Traffic Policy set from spec §3: glob patterns, specificity-sorted
// (exact > prefix > suffix-only), first match wins. Grounded on the
// teacher lineage's dynamic_policy_engine.go condition-matching structure,
// generalized from string-operator conditions to glob matching via
// github.com/gobwas/glob — the precise fit for prefix/suffix/exact
// model-name rules this spec calls for, where the teacher's own
// hand-rolled strings.Contains/regexp matching would be a worse fit.
package policy

import (
	"sort"

	"github.com/gobwas/glob"

	"nexus/internal/domain"
)

// compiledPolicy pairs a TrafficPolicy with its precompiled glob matcher.
type compiledPolicy struct {
	policy domain.TrafficPolicy
	g      glob.Glob
}

// Set is an ordered, specificity-sorted collection of Traffic Policies
// ready for fast repeated matching.
type Set struct {
	policies []compiledPolicy
}

// NewSet compiles and specificity-sorts the given policies. Invalid glob
// patterns are a configuration error per spec §7 item 4 ("fatal: refuse to
// start") and are returned as an error rather than silently skipped.
func NewSet(policies []domain.TrafficPolicy) (*Set, error) {
	compiled := make([]compiledPolicy, 0, len(policies))
	for _, p := range policies {
		g, err := glob.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPolicy{policy: p, g: g})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].policy.Specificity() > compiled[j].policy.Specificity()
	})
	return &Set{policies: compiled}, nil
}

// Match returns the first (most specific) policy whose pattern matches
// model, or false if none match.
func (s *Set) Match(model string) (domain.TrafficPolicy, bool) {
	for _, cp := range s.policies {
		if cp.g.Match(model) {
			return cp.policy, true
		}
	}
	return domain.TrafficPolicy{}, false
}
