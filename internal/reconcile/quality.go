// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"nexus/internal/domain"
	"nexus/internal/logger"
)

// qualityThreshold is the default error_rate_1h at or above which a candidate is
// considered degraded (spec §4.7).
const qualityThreshold = 0.5

// QualitySnapshotReader is the read-only dependency on the Quality Store.
type QualitySnapshotReader interface {
	Snapshot(agentID string) domain.AgentQualityMetrics
}

// QualityReconciler excludes candidates whose recent error rate is at or
// above its threshold, with the safeguard that it never excludes the last
// remaining candidates — a degraded backend beats no backend at all.
type QualityReconciler struct {
	store     QualitySnapshotReader
	threshold float64
	log       *logger.Logger
}

// NewQualityReconciler constructs the reconciler with the default
// threshold. Use NewQualityReconcilerWithThreshold to override it.
func NewQualityReconciler(store QualitySnapshotReader) *QualityReconciler {
	return NewQualityReconcilerWithThreshold(store, qualityThreshold)
}

// NewQualityReconcilerWithThreshold constructs the reconciler with an
// explicit error-rate threshold.
func NewQualityReconcilerWithThreshold(store QualitySnapshotReader, threshold float64) *QualityReconciler {
	return &QualityReconciler{store: store, threshold: threshold, log: logger.New("quality-reconciler")}
}

// Name implements Reconciler.
func (q *QualityReconciler) Name() string { return "quality" }

// Reconcile implements Reconciler per spec §4.7.
func (q *QualityReconciler) Reconcile(intent *domain.RoutingIntent) error {
	type degraded struct {
		id    string
		rate  float64
	}
	var flagged []degraded

	for _, id := range intent.Candidates {
		m := q.store.Snapshot(id)
		if m.ErrorRate1h >= q.threshold {
			flagged = append(flagged, degraded{id: id, rate: m.ErrorRate1h})
		}
	}

	if len(flagged) == 0 {
		return nil
	}
	if len(flagged) == len(intent.Candidates) {
		// Excluding every flagged candidate would empty the set; the
		// safeguard in spec §4.7 forbids quality alone from doing that.
		q.log.Warn("", intent.RequestID, "quality reconciler safeguard: would empty candidate set, skipping exclusion", map[string]interface{}{
			"candidate_count": len(intent.Candidates),
		})
		return nil
	}

	for _, d := range flagged {
		intent.Exclude(d.id, q.Name(), domain.QualityDegraded{ErrorRate: d.rate}, "retry against a healthier backend")
	}
	return nil
}
