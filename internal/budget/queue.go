// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by Enqueue when the bounded FIFO has no room.
var ErrQueueFull = errors.New("budget queue full")

// ErrQueueDeadlineExpired is returned by Wait when a queued item's
// per-request deadline elapses before a slot frees up — the caller should
// convert this into a Reject with Retry-After, per spec §5/§9.
var ErrQueueDeadlineExpired = errors.New("budget queue deadline expired")

// Queue is the bounded FIFO the Scheduler hands an Intent to when the
// Budget Reconciler has annotated HardLimitQueue and no local candidate
// remains. This makes "queue" a real v1 behavior (SPEC_FULL.md §9 Open
// Question #1) rather than a silent downgrade to reject.
type Queue struct {
	slots chan struct{}
}

// NewQueue constructs a bounded queue with room for `capacity` waiting
// requests.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{slots: make(chan struct{}, capacity)}
}

// Enqueue reserves a queue slot immediately or returns ErrQueueFull. It
// does not block — backpressure is expressed by rejecting new entries
// once the FIFO is saturated, not by making callers wait to even enqueue.
func (q *Queue) Enqueue() error {
	select {
	case q.slots <- struct{}{}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until ctx is done (the per-request deadline) and then
// releases the slot. The routing layer calls Wait after Enqueue succeeds
// to hold the slot for the duration of the retry window; on ctx
// cancellation it returns ErrQueueDeadlineExpired and the caller converts
// the Intent to Reject with Retry-After.
func (q *Queue) Wait(ctx context.Context) error {
	<-ctx.Done()
	q.release()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrQueueDeadlineExpired
	}
	return ctx.Err()
}

// Release frees a slot without waiting for a deadline — used when a
// queued request is serviced before its deadline (e.g. a local backend
// frees capacity).
func (q *Queue) Release() {
	q.release()
}

func (q *Queue) release() {
	select {
	case <-q.slots:
	default:
	}
}

// Len returns the current number of occupied slots.
func (q *Queue) Len() int {
	return len(q.slots)
}

// DefaultDeadline is the conservative per-request queue deadline used when
// config does not override it.
const DefaultDeadline = 30 * time.Second
