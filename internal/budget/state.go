// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package budget is the process-wide Budget State machinery: an atomic
// monthly-spending counter in cents, soft/hard limit classification, and a
// daily reset ticker. Grounded on the teacher lineage's cost.BudgetStatus
// classification and its atomic-counter idioms elsewhere
// (ProviderMetricsTracker, routing_strategy.go's roundRobinIndex).
package budget

import (
	"sync/atomic"
	"time"

	"nexus/internal/domain"
	"nexus/internal/logger"
)

// State is the global, process-wide budget singleton. Its semantics are
// intentionally "best-effort recent value" via atomics, not a
// linearizable ledger: concurrent increments may
// exceed the configured limit by up to (in-flight requests × average
// cost); this overage is an accepted, documented property, not a bug.
type State struct {
	MonthlyLimitCents    int64 // 0 disables the budget entirely
	SoftLimitPercent     int
	HardLimitAction      domain.HardLimitAction
	BillingCycleStartDay int

	spendingCents atomic.Int64
	lastReset     atomic.Value // time.Time

	log    *logger.Logger
	ticker *time.Ticker
	stop   chan struct{}
}

// New constructs budget State from static configuration.
func New(monthlyLimitCents int64, softLimitPercent int, action domain.HardLimitAction, billingCycleStartDay int) *State {
	s := &State{
		MonthlyLimitCents:    monthlyLimitCents,
		SoftLimitPercent:     softLimitPercent,
		HardLimitAction:      action,
		BillingCycleStartDay: clampDay(billingCycleStartDay),
		log:                  logger.New("budget-state"),
		stop:                 make(chan struct{}),
	}
	s.lastReset.Store(time.Now().UTC())
	return s
}

func clampDay(d int) int {
	if d < 1 {
		return 1
	}
	if d > 28 {
		return 28
	}
	return d
}

// SpendingCents returns the current counter value.
func (s *State) SpendingCents() int64 {
	return s.spendingCents.Load()
}

// AddSpending increments the counter by cents (lock-free, per spec §4.11).
// Negative values are rejected — spending never decreases except via
// reset.
func (s *State) AddSpending(cents int64) {
	if cents <= 0 {
		return
	}
	s.spendingCents.Add(cents)
}

// Classify returns the current budget status class.
func (s *State) Classify() domain.BudgetStatusClass {
	return domain.ClassifyBudget(s.spendingCents.Load(), s.MonthlyLimitCents, s.SoftLimitPercent)
}

// reset zeroes the counter and records the reset time. Exposed
// unexported; triggered only by the daily ticker or explicitly in tests
// via ForceReset.
func (s *State) reset(now time.Time) {
	s.spendingCents.Store(0)
	s.lastReset.Store(now)
	s.log.Info("", "", "budget counter reset", map[string]interface{}{
		"reset_at": now.Format(time.RFC3339),
	})
}

// ForceReset resets the counter immediately; exposed for tests and
// operator-triggered manual resets.
func (s *State) ForceReset() {
	s.reset(time.Now().UTC())
}

// LastReset returns the timestamp of the last counter reset.
func (s *State) LastReset() time.Time {
	v, _ := s.lastReset.Load().(time.Time)
	return v
}

// shouldResetToday reports whether today is the configured billing cycle
// boundary, accounting for months shorter than the configured day.
func shouldResetToday(now time.Time, billingCycleStartDay int) bool {
	lastOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	effectiveDay := billingCycleStartDay
	if effectiveDay > lastOfMonth {
		effectiveDay = lastOfMonth
	}
	return now.Day() == effectiveDay
}

// StartDailyReset launches the background ticker that checks the
// calendar once a day and resets the counter on the configured boundary.
// checkInterval is exposed (rather than hardcoded to 24h) so tests can run
// it at an accelerated cadence.
func (s *State) StartDailyReset(checkInterval time.Duration) {
	if checkInterval <= 0 {
		checkInterval = 24 * time.Hour
	}
	s.ticker = time.NewTicker(checkInterval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				now := time.Now().UTC()
				if shouldResetToday(now, s.BillingCycleStartDay) && now.Sub(s.LastReset()) > 23*time.Hour {
					s.reset(now)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the background reset goroutine.
func (s *State) Stop() {
	select {
	case <-s.stop:
		// already stopped
	default:
		close(s.stop)
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
}
