package clock

import "sync/atomic"

// Sequence is a monotonic logical counter.
//
// Timelines stamp events with it to keep simultaneous events in insertion
// order, and the scheduler draws callback ids from it.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// The zero value is ready to use and starts at 0.
type Sequence struct {
	n atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence whose next value is start+1.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next increments the sequence and returns the new value.
// Calls are linearizable - each call returns a unique, increasing value.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}
