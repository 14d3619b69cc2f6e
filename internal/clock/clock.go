package clock

import (
	"sync"
	"time"
)

// Clock reports the current position on the shared timeline in seconds.
//
// Implementations must be monotonic: a read never returns less than an
// earlier read.
type Clock interface {
	CurrentTime() float64
}

// Wall measures seconds elapsed since it was created, using the runtime's
// monotonic clock reading.
type Wall struct {
	start time.Time
	now   func() time.Time
}

// NewWall returns a Wall clock starting at 0.
func NewWall() *Wall {
	return &Wall{start: time.Now(), now: time.Now}
}

// CurrentTime returns seconds since NewWall.
func (w *Wall) CurrentTime() float64 {
	return w.now().Sub(w.start).Seconds()
}

// Manual is a Clock that only moves when told to.
//
// Thread-safety: all methods are safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now float64
}

// NewManual creates a manual clock reading start.
func NewManual(start float64) *Manual {
	return &Manual{now: start}
}

// CurrentTime returns the clock's current reading.
func (m *Manual) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d seconds. Negative d is ignored so the
// clock stays monotonic.
func (m *Manual) Advance(d float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now += d
	}
	return m.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (m *Manual) Set(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t > m.now {
		m.now = t
	}
}
