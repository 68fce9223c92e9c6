// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package pricing is the static model→price lookup with prefix fallback
// used by the Budget Reconciler's ex-ante cost estimate. Grounded on the
// teacher lineage's cost.CalculateCost: exact model match, then a
// lowercased-name fallback, then the longest configured model name that
// is a prefix of the requested one, then a per-provider wildcard entry, and
// finally a synthetic unknown-provider entry rather than zero.
package pricing

import (
	"strings"
	"sync"
)

// ModelPrice is the cost per 1000 tokens, expressed in hundredths of a
// cent (to keep everything integer and avoid float drift over millions of
// requests): a value of 300 means $0.03 per 1K tokens.
type ModelPrice struct {
	InputPer1K  int64
	OutputPer1K int64
}

// unknownProvider is the synthetic fallback entry consulted when a
// provider has no wildcard entry of its own.
const unknownProvider = "__unknown__"

// Registry is a read-mostly, prefix-fallback pricing table. Safe for
// concurrent use; SetPrice is expected only at config-load time but is
// still guarded for hot-reload scenarios.
type Registry struct {
	mu     sync.RWMutex
	prices map[string]map[string]ModelPrice // provider -> model -> price
}

// New constructs a Registry seeded with a conservative built-in default
// table. Operators override via config; see internal/config.
func New() *Registry {
	r := &Registry{prices: map[string]map[string]ModelPrice{
		"openai": {
			"gpt-4":     {InputPer1K: 300, OutputPer1K: 600},
			"gpt-4o":    {InputPer1K: 50, OutputPer1K: 150},
			"gpt-3.5":   {InputPer1K: 5, OutputPer1K: 15},
			"*":         {InputPer1K: 100, OutputPer1K: 200},
		},
		"anthropic": {
			"claude-3-opus":   {InputPer1K: 150, OutputPer1K: 750},
			"claude-3-sonnet": {InputPer1K: 30, OutputPer1K: 150},
			"*":               {InputPer1K: 80, OutputPer1K: 400},
		},
		"local": {
			"*": {InputPer1K: 0, OutputPer1K: 0},
		},
		unknownProvider: {
			"*": {InputPer1K: 0, OutputPer1K: 0},
		},
	}}
	return r
}

// SetPrice installs or overrides the price for provider/model.
func (r *Registry) SetPrice(provider, model string, price ModelPrice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prices[provider] == nil {
		r.prices[provider] = make(map[string]ModelPrice)
	}
	r.prices[provider][model] = price
}

// Lookup resolves a price for provider/model: exact match, then the
// lowercased model name, then the longest model key that prefixes the
// lowercased model name, then the provider's "*" wildcard, then the
// synthetic unknown-provider wildcard. Never errors; worst case returns
// the zero price.
func (r *Registry) Lookup(provider, model string) ModelPrice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.prices[provider]; ok {
		if p, ok := m[model]; ok {
			return p
		}
		if p, ok := m[strings.ToLower(model)]; ok {
			return p
		}
		best := ""
		for k := range m {
			if k != "*" && len(k) > len(best) && strings.HasPrefix(strings.ToLower(model), k) {
				best = k
			}
		}
		if best != "" {
			return m[best]
		}
		if p, ok := m["*"]; ok {
			return p
		}
	}
	if p, ok := r.prices[unknownProvider]["*"]; ok {
		return p
	}
	return ModelPrice{}
}

// EstimateCostCents computes the cost, in whole cents, of inputTokens and
// outputTokens against the looked-up price. Rounds down (conservative
// under-estimate is acceptable; spec documents the budget counter as
// best-effort).
func (r *Registry) EstimateCostCents(provider, model string, inputTokens, outputTokens int) int64 {
	price := r.Lookup(provider, model)
	// price.*Per1K is in hundredths of a cent per 1K tokens; cost_cents =
	// tokens * (price/100) / 1000 = tokens * price / 100000.
	inCost := int64(inputTokens) * price.InputPer1K / 100000
	outCost := int64(outputTokens) * price.OutputPer1K / 100000
	return inCost + outCost
}
