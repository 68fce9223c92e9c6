// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import "time"

// AgentQualityMetrics is the per-agent computed snapshot the Quality
// Reconciler and Scheduler read. It is always a value type copy handed out
// by the Quality Store's atomically-swapped snapshot — reconcilers never
// see the raw outcome ring behind it. Zero value defaults (error_rate=0,
// ttft=0) are optimistic; SuccessRate24h must be explicitly seeded to 1.0
// by whatever constructs the default snapshot for a new agent, since the
// Go zero value for a float64 is 0, not 1.
type AgentQualityMetrics struct {
	ErrorRate1h      float64
	SuccessRate24h   float64
	AvgTTFTMs        float64
	RequestCount1h   int
	LastFailure      time.Time
}

// DefaultAgentQualityMetrics is the metrics snapshot assumed for a backend
// with no recorded history: never penalize new backends.
func DefaultAgentQualityMetrics() AgentQualityMetrics {
	return AgentQualityMetrics{
		ErrorRate1h:    0.0,
		SuccessRate24h: 1.0,
		AvgTTFTMs:      0.0,
	}
}
