// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package quality is the per-agent rolling outcome store: a bounded
// in-memory ring of raw outcomes under a per-agent write lock, with a
// periodically recomputed, lock-free-readable snapshot. Grounded on the
// teacher lineage's ProviderMetricsTracker incremental-average pattern
// (orchestrator/llm_router.go), generalized to the two-layer ring/snapshot
// split spec §4.10 requires: reconcilers must only ever see the snapshot,
// never the raw ring.
package quality

import (
	"sync"
	"sync/atomic"
	"time"

	"nexus/internal/domain"
	"nexus/internal/logger"
)

// retention is how long raw outcomes are kept before being pruned by the
// recompute sweep.
const retention = 24 * time.Hour

// recentWindow is the window used for the error_rate_1h / request_count_1h
// fields.
const recentWindow = 1 * time.Hour

type outcome struct {
	at      time.Time
	success bool
	ttftMs  float64
}

type agentRing struct {
	mu       sync.RWMutex
	outcomes []outcome
}

// Store holds one agentRing and one atomically-swapped snapshot per agent.
type Store struct {
	mu        sync.RWMutex // guards the rings/snapshots maps themselves
	rings     map[string]*agentRing
	snapshots map[string]*atomic.Value // holds domain.AgentQualityMetrics

	log    *logger.Logger
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

// New constructs an empty Store. Call StartRecompute to begin the
// background snapshot sweep.
func New() *Store {
	return &Store{
		rings:     make(map[string]*agentRing),
		snapshots: make(map[string]*atomic.Value),
		log:       logger.New("quality-store"),
		stop:      make(chan struct{}),
	}
}

func (s *Store) ringFor(agentID string) *agentRing {
	s.mu.RLock()
	r, ok := s.rings[agentID]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rings[agentID]; ok {
		return r
	}
	r = &agentRing{}
	s.rings[agentID] = r
	snap := &atomic.Value{}
	snap.Store(domain.DefaultAgentQualityMetrics())
	s.snapshots[agentID] = snap
	return r
}

// RecordOutcome appends a raw outcome for agentID. O(1) under the agent's
// own write lock; never blocks readers of other agents or snapshot
// readers of this agent.
func (s *Store) RecordOutcome(agentID string, success bool, ttftMs float64) {
	r := s.ringFor(agentID)
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome{at: time.Now(), success: success, ttftMs: ttftMs})
	r.mu.Unlock()
}

// Snapshot returns the current computed metrics for agentID, or the
// optimistic default if the agent has no history yet. It takes only the
// store's map read lock, then reads an atomic.Value; it never waits on an
// agent's ring lock.
func (s *Store) Snapshot(agentID string) domain.AgentQualityMetrics {
	s.mu.RLock()
	snap, ok := s.snapshots[agentID]
	s.mu.RUnlock()
	if !ok {
		return domain.DefaultAgentQualityMetrics()
	}
	v, _ := snap.Load().(domain.AgentQualityMetrics)
	return v
}

// Recompute sweeps every agent's ring: prunes entries older than the
// retention window and atomically replaces the published snapshot. This
// is the only code path that reads the raw ring.
func (s *Store) Recompute() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rings))
	for id := range s.rings {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, id := range ids {
		s.recomputeAgent(id, now)
	}
}

func (s *Store) recomputeAgent(agentID string, now time.Time) {
	s.mu.RLock()
	r := s.rings[agentID]
	snap := s.snapshots[agentID]
	s.mu.RUnlock()
	if r == nil || snap == nil {
		return
	}

	r.mu.Lock()
	cutoff := now.Add(-retention)
	pruned := r.outcomes[:0]
	for _, o := range r.outcomes {
		if o.at.After(cutoff) {
			pruned = append(pruned, o)
		}
	}
	r.outcomes = pruned
	data := make([]outcome, len(r.outcomes))
	copy(data, r.outcomes)
	r.mu.Unlock()

	metrics := computeMetrics(data, now)
	snap.Store(metrics)
}

func computeMetrics(data []outcome, now time.Time) domain.AgentQualityMetrics {
	if len(data) == 0 {
		return domain.DefaultAgentQualityMetrics()
	}

	recentCutoff := now.Add(-recentWindow)
	var recentTotal, recentFailures int
	var total24h, success24h int
	var ttftSum float64
	var ttftCount int
	var lastFailure time.Time

	for _, o := range data {
		if o.at.After(recentCutoff) {
			recentTotal++
			if !o.success {
				recentFailures++
			}
		}
		total24h++
		if o.success {
			success24h++
			ttftSum += o.ttftMs
			ttftCount++
		} else if o.at.After(lastFailure) {
			lastFailure = o.at
		}
	}

	m := domain.AgentQualityMetrics{
		RequestCount1h: recentTotal,
		LastFailure:    lastFailure,
	}
	if recentTotal > 0 {
		m.ErrorRate1h = float64(recentFailures) / float64(recentTotal)
	}
	if total24h > 0 {
		m.SuccessRate24h = float64(success24h) / float64(total24h)
	} else {
		m.SuccessRate24h = 1.0
	}
	if ttftCount > 0 {
		m.AvgTTFTMs = ttftSum / float64(ttftCount)
	}
	return m
}

// StartRecompute launches the background recomputation ticker (~30s per
// spec §4.10). Call Stop to cancel.
func (s *Store) StartRecompute(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.Recompute()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the background recompute goroutine. Safe to call multiple
// times or without a prior StartRecompute.
func (s *Store) Stop() {
	s.once.Do(func() {
		close(s.stop)
		if s.ticker != nil {
			s.ticker.Stop()
		}
	})
}
