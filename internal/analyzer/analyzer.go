// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package analyzer

import "nexus/internal/domain"

// maxAliasHops is the fixed cycle-breaking cap from spec §4.2/§9: beats
// explicit cycle detection with smaller state, safe under any malicious
// config. On the 4th lookup, resolution stops whether or not another
// mapping exists.
const maxAliasHops = 3

// ResolveAlias follows alias -> target chains up to maxAliasHops times,
// returning the final resolved name.
func ResolveAlias(aliases map[string]string, name string) string {
	resolved := name
	for i := 0; i < maxAliasHops; i++ {
		next, ok := aliases[resolved]
		if !ok {
			break
		}
		resolved = next
	}
	return resolved
}

// Analyze resolves the requested model's alias chain and extracts
// structural signals (vision/tools/json-mode need, token estimate) from
// the request body. It does not query the registry or set candidates —
// the caller (internal/routing) wires Analyze's Requirements output
// together with a Registry lookup to build the initial Intent, keeping
// this package free of a Registry dependency.
func Analyze(req ChatRequest, aliases map[string]string, tierMode domain.TierMode) (resolvedModel string, reqs domain.Requirements) {
	resolvedModel = ResolveAlias(aliases, req.Model)

	var needsVision, needsTools, needsJSONMode bool
	var charCount int

	if len(req.Tools) > 0 {
		needsTools = true
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		needsJSONMode = true
	}

	for _, m := range req.Messages {
		if m.IsMultipart {
			for _, p := range m.Parts {
				if p.Type == "image_url" {
					needsVision = true
				}
				charCount += len(p.Text)
			}
		} else {
			charCount += len(m.Text)
		}
	}

	estimatedTokens := int(float64(charCount) / 4.0 * 1.15)

	reqs = domain.Requirements{
		RequestedModel:   req.Model,
		EstimatedTokens:  estimatedTokens,
		NeedsVision:      needsVision,
		NeedsTools:       needsTools,
		NeedsJSONMode:    needsJSONMode,
		PrefersStreaming: req.Stream,
		TierEnforcement:  tierMode,
		HasHistory:       req.HasHistory(),
	}
	return resolvedModel, reqs
}

// ParseTierMode interprets the X-Nexus-Strict / X-Nexus-Flexible header
// pair per spec §6: strict wins on conflict, default is strict, invalid
// values are treated as false.
func ParseTierMode(strictHeader, flexibleHeader string) domain.TierMode {
	strict := strictHeader == "true"
	flexible := flexibleHeader == "true"
	if flexible && !strict {
		return domain.TierModeFlexible
	}
	return domain.TierModeStrict
}
