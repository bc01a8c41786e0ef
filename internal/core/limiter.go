package core

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultMaxConcurrentOps keeps tool calls strictly one at a time. Documents
// such as the error log are rewritten whole, so two writers would race.
const DefaultMaxConcurrentOps = 1

// DefaultMaxWaitTime bounds how long a tool call queues for a slot.
const DefaultMaxWaitTime = 30 * time.Second

// OpLimiter admits tool calls into a fixed number of slots. A call that
// cannot get a slot within the wait budget fails with ErrBusy.
type OpLimiter struct {
	slots    chan struct{}
	wait     time.Duration
	inFlight atomic.Int64
}

// NewOpLimiter returns a limiter with capacity slots. Non-positive arguments
// fall back to the defaults.
func NewOpLimiter(capacity int, wait time.Duration) *OpLimiter {
	if capacity <= 0 {
		capacity = DefaultMaxConcurrentOps
	}
	if wait <= 0 {
		wait = DefaultMaxWaitTime
	}
	return &OpLimiter{
		slots: make(chan struct{}, capacity),
		wait:  wait,
	}
}

// Acquire takes a slot, queueing for at most the wait budget. It returns
// ctx.Err() when ctx ends first. Every nil return must be paired with Release.
func (l *OpLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.inFlight.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *OpLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.inFlight.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *OpLimiter) Release() {
	l.inFlight.Add(-1)
	<-l.slots
}

// InFlight reports how many calls currently hold a slot.
func (l *OpLimiter) InFlight() int {
	return int(l.inFlight.Load())
}

// WaitForDrain returns once no call holds a slot, or with ctx.Err().
func (l *OpLimiter) WaitForDrain(ctx context.Context) error {
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()

	for l.InFlight() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// OpSlots is a point-in-time view of limiter occupancy, served by /healthz.
type OpSlots struct {
	InFlight int `json:"in_flight"`
	Free     int `json:"free"`
	Capacity int `json:"capacity"`
}

// Slots returns the current occupancy.
func (l *OpLimiter) Slots() OpSlots {
	capacity := cap(l.slots)
	return OpSlots{
		InFlight: l.InFlight(),
		Free:     capacity - len(l.slots),
		Capacity: capacity,
	}
}
