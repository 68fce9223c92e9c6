// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package quality

import (
	"testing"
)

func TestStore_DefaultSnapshotForUnknownAgent(t *testing.T) {
	s := New()
	snap := s.Snapshot("never-seen")
	if snap.ErrorRate1h != 0.0 || snap.SuccessRate24h != 1.0 || snap.AvgTTFTMs != 0.0 {
		t.Fatalf("expected optimistic defaults, got %+v", snap)
	}
}

func TestStore_RecordAndRecompute(t *testing.T) {
	s := New()
	for i := 0; i < 8; i++ {
		s.RecordOutcome("agent-1", true, 100)
	}
	for i := 0; i < 2; i++ {
		s.RecordOutcome("agent-1", false, 0)
	}
	s.Recompute()

	snap := s.Snapshot("agent-1")
	if snap.RequestCount1h != 10 {
		t.Fatalf("expected request_count_1h=10, got %d", snap.RequestCount1h)
	}
	if snap.ErrorRate1h != 0.2 {
		t.Fatalf("expected error_rate_1h=0.2, got %v", snap.ErrorRate1h)
	}
	if snap.SuccessRate24h != 0.8 {
		t.Fatalf("expected success_rate_24h=0.8, got %v", snap.SuccessRate24h)
	}
	if snap.AvgTTFTMs != 100 {
		t.Fatalf("expected avg_ttft_ms=100, got %v", snap.AvgTTFTMs)
	}
}

func TestStore_RecomputeIsLockFreeForReaders(t *testing.T) {
	s := New()
	s.RecordOutcome("agent-1", true, 50)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Snapshot("agent-1")
		}
		close(done)
	}()
	s.Recompute()
	<-done
}
