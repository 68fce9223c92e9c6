// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile implements the reconciler pipeline contract (spec
// §4.3) and the five reconcilers that narrow a RoutingIntent's candidate
// set: Privacy, Budget, Tier/Capability, Quality, and the terminal
// Scheduler. Every reconciler may only tighten the Intent — add to
// Excluded/RejectionReasons, move candidates to excluded, and tighten
// constraints. None may restore a previously-excluded agent or relax a
// constraint.
package reconcile

import (
	"time"

	"nexus/internal/domain"
	"nexus/internal/logger"
	"nexus/internal/metrics"
)

// Reconciler is the single small interface every pipeline stage
// implements (spec §4.3). Name is stable and used for log/rejection
// attribution.
type Reconciler interface {
	Name() string
	Reconcile(intent *domain.RoutingIntent) error
}

// budgetLatencyWarn is the per-reconciler p99 budget from spec §4.3; a
// reconciler exceeding it is logged, never failed — latency budgets are
// an operational concern, not a correctness one.
const budgetLatencyWarn = 500 * time.Microsecond

// Pipeline runs an ordered list of Reconcilers against one Intent.
type Pipeline struct {
	stages []Reconciler
	log    *logger.Logger
}

// NewPipeline builds a Pipeline from the given ordered stages. Per spec
// §4.3's order-independence property, the *order* of non-terminal stages
// must not affect the final outcome — this constructor does not enforce
// that (it is a property tested separately); it simply runs what it is
// given, in the order given.
func NewPipeline(stages ...Reconciler) *Pipeline {
	return &Pipeline{stages: stages, log: logger.New("reconcile-pipeline")}
}

// Run executes every stage against intent in order, stopping early only
// on a fatal (non-nil) error from a stage — fatal per spec §4.3 means
// missing required configuration or an internal invariant violation, not
// "candidate set became empty" (which is non-fatal and handled by the
// terminal Scheduler stage).
func (p *Pipeline) Run(intent *domain.RoutingIntent) error {
	for _, stage := range p.stages {
		start := time.Now()
		if err := stage.Reconcile(intent); err != nil {
			p.log.Error("", intent.RequestID, "reconciler fatal error", map[string]interface{}{
				"reconciler": stage.Name(), "error": err.Error(),
			})
			return err
		}
		elapsed := time.Since(start)
		metrics.ObserveReconcilerDuration(stage.Name(), float64(elapsed.Microseconds()))
		if elapsed > budgetLatencyWarn {
			p.log.Warn("", intent.RequestID, "reconciler exceeded latency budget", map[string]interface{}{
				"reconciler": stage.Name(), "elapsed_us": elapsed.Microseconds(),
			})
		}
	}
	for _, rec := range intent.RejectionReasons {
		metrics.ObserveRejection(rec.ReconcilerName, rec.Reason.Code())
	}
	return nil
}
