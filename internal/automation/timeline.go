package automation

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/lookahead/internal/clock"
)

// DefaultProjectionHorizon is how far past a mutation the live projection
// re-renders onto an attached sink, in seconds.
const DefaultProjectionHorizon = 9999.0

// Timeline is the ordered automation event store for one control.
//
// INVARIANTS:
//   - events is sorted by (Time, Seq) after every call
//   - when looping, loopEnd > loopStart
//
// A Timeline is owned by a single collaborator and is not safe for
// concurrent use.
type Timeline struct {
	events []Event
	seq    clock.Sequence
	base   float64

	looping   bool
	loopStart float64
	loopEnd   float64

	sink    Sink
	clock   clock.Clock
	horizon float64
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithBaseValue sets the value reported when the timeline has no events.
func WithBaseValue(v float64) Option {
	return func(tl *Timeline) {
		tl.base = v
	}
}

// WithSink attaches a sink at construction. Existing events are not projected.
func WithSink(s Sink) Option {
	return func(tl *Timeline) {
		tl.sink = s
	}
}

// WithClock gives the timeline a clock, enabling SetValue.
func WithClock(c clock.Clock) Option {
	return func(tl *Timeline) {
		tl.clock = c
	}
}

// WithProjectionHorizon sets how far ahead live projection renders.
// Non-positive values are ignored.
func WithProjectionHorizon(d float64) Option {
	return func(tl *Timeline) {
		if d > 0 {
			tl.horizon = d
		}
	}
}

// New creates an empty timeline.
func New(opts ...Option) *Timeline {
	tl := &Timeline{
		horizon: DefaultProjectionHorizon,
	}
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

// Attach makes s the live projection target for subsequent mutations.
func (tl *Timeline) Attach(s Sink) {
	tl.sink = s
}

// Detach removes the live projection target.
func (tl *Timeline) Detach() {
	tl.sink = nil
}

// BaseValue returns the value reported by an empty timeline.
func (tl *Timeline) BaseValue() float64 {
	return tl.base
}

// Len returns the number of stored events.
func (tl *Timeline) Len() int {
	return len(tl.events)
}

// Events returns a copy of the stored events in (Time, Seq) order.
func (tl *Timeline) Events() []Event {
	return slices.Clone(tl.events)
}

// SetValueAtTime records a jump to value at t and projects it.
func (tl *Timeline) SetValueAtTime(value, t float64) error {
	if !finite(value, t) {
		return contractError("SetValueAtTime", "value %v and time %v must be finite", value, t)
	}
	tl.insert(KindSet, value, t)
	return tl.project(t)
}

// LinearRampToValueAtTime records a linear ramp arriving at value at t and
// projects it.
func (tl *Timeline) LinearRampToValueAtTime(value, t float64) error {
	if !finite(value, t) {
		return contractError("LinearRampToValueAtTime", "value %v and time %v must be finite", value, t)
	}
	tl.insert(KindRamp, value, t)
	return tl.project(t)
}

// SetValue sets value at the timeline clock's current time.
func (tl *Timeline) SetValue(value float64) error {
	if tl.clock == nil {
		return contractError("SetValue", "timeline has no clock")
	}
	return tl.SetValueAtTime(value, tl.clock.CurrentTime())
}

// SetEnvelope replaces everything from the first point onward with the
// envelope. The first point is a set; later points ramp when the value
// changes and set when it repeats.
func (tl *Timeline) SetEnvelope(points []Point) error {
	if len(points) == 0 {
		return contractError("SetEnvelope", "envelope needs at least one point")
	}
	for _, p := range points {
		if !finite(p.Value, p.Time) {
			return contractError("SetEnvelope", "point (%v, %v) must be finite", p.Value, p.Time)
		}
	}

	first := points[0]
	if err := tl.CancelScheduledValues(first.Time); err != nil {
		return err
	}
	if err := tl.SetValueAtTime(first.Value, first.Time); err != nil {
		return err
	}
	last := first.Value
	for _, p := range points[1:] {
		var err error
		if p.Value != last {
			err = tl.LinearRampToValueAtTime(p.Value, p.Time)
		} else {
			err = tl.SetValueAtTime(p.Value, p.Time)
		}
		if err != nil {
			return err
		}
		last = p.Value
	}
	return nil
}

// CancelScheduledValues drops every event at or after t and forwards the
// cancellation to the attached sink.
func (tl *Timeline) CancelScheduledValues(t float64) error {
	if !finite(t) {
		return contractError("CancelScheduledValues", "time %v must be finite", t)
	}
	tl.events = slices.DeleteFunc(tl.events, func(e Event) bool {
		return e.Time >= t
	})
	if tl.sink != nil {
		tl.sink.CancelScheduledValues(t)
	}
	return nil
}

// CancelAndHoldAtTime cancels everything from t onward and holds the value
// the control would have had at t.
//
// With fewer than two events it does nothing. If the first event after t is
// a ramp with nothing before t to ramp from, it returns an InvalidState
// error wrapping ErrRampWithoutAnchor and leaves the timeline untouched.
func (tl *Timeline) CancelAndHoldAtTime(t float64) error {
	if !finite(t) {
		return contractError("CancelAndHoldAtTime", "time %v must be finite", t)
	}
	if len(tl.events) < 2 {
		return nil
	}

	var a, b *Event
	for i := range tl.events {
		if tl.events[i].Time <= t {
			a = &tl.events[i]
		} else {
			b = &tl.events[i]
			break
		}
	}

	if b != nil && b.Kind == KindRamp && a == nil {
		return &Error{
			Code:    CodeInvalidState,
			Op:      "CancelAndHoldAtTime",
			Message: "cannot hold a ramp that has no preceding event",
			Err:     ErrRampWithoutAnchor,
		}
	}

	// copy before the cancel compacts the slice under the pointers
	var anchor, next Event
	hasAnchor, hasNext := a != nil, b != nil
	if hasAnchor {
		anchor = *a
	}
	if hasNext {
		next = *b
	}

	if err := tl.CancelScheduledValues(t); err != nil {
		return err
	}

	switch {
	case hasNext && next.Kind == KindRamp:
		return tl.LinearRampToValueAtTime(interpolate(t, anchor, next), t)
	case hasAnchor:
		return tl.SetValueAtTime(anchor.Value, t)
	default:
		return nil
	}
}

// SetLoop makes [start, end) repeat during materialization.
func (tl *Timeline) SetLoop(start, end float64) error {
	if !finite(start, end) {
		return contractError("SetLoop", "loop bounds %v, %v must be finite", start, end)
	}
	if end <= start {
		return contractError("SetLoop", "loop end %v must be greater than start %v", end, start)
	}
	tl.looping = true
	tl.loopStart = start
	tl.loopEnd = end
	return nil
}

// ClearLoop disables looping.
func (tl *Timeline) ClearLoop() {
	tl.looping = false
	tl.loopStart = 0
	tl.loopEnd = 0
}

// Loop returns the loop region and whether looping is enabled.
func (tl *Timeline) Loop() (start, end float64, ok bool) {
	return tl.loopStart, tl.loopEnd, tl.looping
}

// LoopDuration returns loopEnd - loopStart, or 0 when not looping.
func (tl *Timeline) LoopDuration() float64 {
	if !tl.looping {
		return 0
	}
	return tl.loopEnd - tl.loopStart
}

// ValueAtTime returns the control's value at t.
//
// An empty timeline reports its base value; at or after the last event the
// last value holds. Times before the first event have no anchor and return
// an InvariantViolation wrapping ErrNoAnchor.
func (tl *Timeline) ValueAtTime(t float64) (float64, error) {
	if !finite(t) {
		return 0, contractError("ValueAtTime", "time %v must be finite", t)
	}
	n := len(tl.events)
	if n == 0 {
		return tl.base, nil
	}
	if last := tl.events[n-1]; last.Time <= t {
		return last.Value, nil
	}

	// first event strictly after t; exists because last.Time > t
	i := sort.Search(n, func(i int) bool {
		return tl.events[i].Time > t
	})
	if i == 0 {
		return 0, invariantError("ValueAtTime", ErrNoAnchor, "time %v precedes the first event at %v", t, tl.events[0].Time)
	}
	return interpolate(t, tl.events[i-1], tl.events[i]), nil
}

// insert records an event, keeping (Time, Seq) order.
func (tl *Timeline) insert(kind Kind, value, t float64) {
	e := Event{Time: t, Value: value, Kind: kind, Seq: tl.seq.Next()}
	tl.events = append(tl.events, e)

	// Seq is always the largest so far; only an earlier time breaks order.
	if n := len(tl.events); n > 1 && t < tl.events[n-2].Time {
		slices.SortFunc(tl.events, compareEvents)
	}
}

// project re-renders the attached sink from t onward, 1:1 in time. The loop
// region applies to Materialize only.
func (tl *Timeline) project(t float64) error {
	if tl.sink == nil {
		return nil
	}
	tl.sink.CancelScheduledValues(t)
	if err := tl.materializeSlice(tl.sink, t, t, t+tl.horizon, tl.horizon); err != nil {
		slog.Error("live projection failed", "time", t, "error", err)
		return err
	}
	return nil
}
