// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"hash/fnv"
	"sort"

	"nexus/internal/domain"
	"nexus/internal/logger"
)

// ttftThresholdMs is the avg_ttft_ms floor below which no TTFT penalty
// applies (spec §4.8).
const ttftThresholdMs = 1000.0

// restrictedAffinityBonus rewards a candidate that matched the Intent's
// affinity key while already in the restricted zone (spec §4.4's "ties
// broken later in Scheduler" note).
const restrictedAffinityBonus = 0.5

// softLimitZeroCostBonus is the additive preference for zero-cost (local)
// candidates once the Budget Reconciler has set the SoftLimit hint (spec
// §9 decision 3: down-weight via bonus, never suppress).
const softLimitZeroCostBonus = 1.0

// qualityDegradedCeiling is the error rate below which no latency-tail
// penalty applies; at or above it the Quality Reconciler would already
// have excluded the candidate unless the safeguard kept it in.
const qualityDegradedCeiling = 0.5

// SchedulerReconciler is the terminal pipeline stage: it scores surviving
// candidates, commits the winner's pending-counter increment, and leaves
// the Intent's SelectedBackend set (or empty, for the Result Encoder to
// synthesize Reject/Queue from RejectionReasons/Constraints).
type SchedulerReconciler struct {
	backends BackendLookup
	quality  QualitySnapshotReader
	log      *logger.Logger
}

// NewSchedulerReconciler constructs the reconciler.
func NewSchedulerReconciler(backends BackendLookup, quality QualitySnapshotReader) *SchedulerReconciler {
	return &SchedulerReconciler{backends: backends, quality: quality, log: logger.New("scheduler-reconciler")}
}

// Name implements Reconciler.
func (s *SchedulerReconciler) Name() string { return "scheduler" }

// candidateScore is the per-candidate scoring tuple the tie-break sort
// operates on.
type candidateScore struct {
	id      string
	score   float64
	pending int64
	ttftMs  float64
}

// Reconcile implements Reconciler per spec §4.8. It never returns an error
// for an empty candidate set — that is the non-fatal terminal state the
// Result Encoder handles, per spec §4.3's fatal/non-fatal split.
func (s *SchedulerReconciler) Reconcile(intent *domain.RoutingIntent) error {
	if len(intent.Candidates) == 0 {
		return nil
	}

	affinityTarget := ""
	if intent.AffinityKey != "" {
		affinityTarget = pickAffinityTarget(intent.Candidates, intent.AffinityKey)
	}

	scored := make([]candidateScore, 0, len(intent.Candidates))
	for _, id := range intent.Candidates {
		backend, ok := s.backends.Get(id)
		if !ok {
			continue
		}
		scored = append(scored, candidateScore{
			id:      id,
			score:   s.score(backend, id == affinityTarget, intent.Constraints.SoftLimitHint),
			pending: backend.PendingRequests(),
			ttftMs:  s.quality.Snapshot(id).AvgTTFTMs,
		})
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.pending != b.pending {
			return a.pending < b.pending
		}
		if a.ttftMs != b.ttftMs {
			return a.ttftMs < b.ttftMs
		}
		return a.id < b.id
	})

	winner := scored[0]
	backend, ok := s.backends.Get(winner.id)
	if !ok {
		return nil
	}
	backend.IncrementPending()
	intent.SelectedBackend = winner.id
	return nil
}

// score computes the spec §4.8 scoring formula for one candidate backend.
func (s *SchedulerReconciler) score(backend *domain.Backend, isAffinityTarget, softLimitHint bool) float64 {
	score := float64(backend.Priority)

	capacity := backend.CapacityEstimate
	if capacity <= 0 {
		capacity = 1
	}
	loadPenalty := float64(backend.PendingRequests()) / float64(capacity)
	score -= loadPenalty

	metrics := s.quality.Snapshot(backend.ID)
	ttftPenalty := 0.01 * maxFloat(0, metrics.AvgTTFTMs-ttftThresholdMs) / 1000.0
	score -= ttftPenalty

	if metrics.ErrorRate1h > 0 && metrics.ErrorRate1h < qualityDegradedCeiling {
		score -= metrics.ErrorRate1h
	}

	if isAffinityTarget && backend.PrivacyZone == domain.PrivacyZoneRestricted {
		score += restrictedAffinityBonus
	}

	if softLimitHint && !backend.Type.IsCloud() {
		score += softLimitZeroCostBonus
	}

	return score
}

// pickAffinityTarget deterministically selects one candidate from the
// current surviving set via a stable hash of the affinity key, standing
// in for a full consistent-hash ring (spec §9 "Affinity"): best-effort,
// and it reshuffles if the candidate set changes (e.g. backend loss).
func pickAffinityTarget(candidates []string, affinityKey string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := append([]string{}, candidates...)
	sort.Strings(sorted)
	h := fnv.New32a()
	h.Write([]byte(affinityKey))
	return sorted[int(h.Sum32())%len(sorted)]
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
