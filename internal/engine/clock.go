package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic sequence source behind offer keys and the event
// log. Every create call and every emitted event is stamped with a
// strictly increasing value, which is what keeps byte-identical offers
// from colliding and keeps the event log replayable in order.
//
// Thread-safety: safe for concurrent use (atomic operations), though the
// engine serializes operations anyway.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to resume from a persisted event log position after a restart.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies the protocol's notion of now. Deadline and term
// checks only ever observe time through this interface, which is how
// tests pin the timing boundaries exactly.
type TimeSource interface {
	Now() time.Time
}

// SystemTime is the production time source.
type SystemTime struct{}

func (SystemTime) Now() time.Time {
	return time.Now()
}
