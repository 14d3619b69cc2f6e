// Package automation implements parameter automation timelines.
//
// A Timeline stores the automation events of one scalar control (gain, pan,
// pitch, ...) and answers two questions about them:
//
//   - ValueAtTime: what value does the control hold at time t?
//   - Materialize: which set/ramp instructions reproduce a window of the
//     timeline on a Sink, in the sink's own time coordinates?
//
// # Event Order
//
// Events are kept sorted by (Time, Seq). Seq comes from a per-timeline
// clock.Sequence, so events added at the same time keep insertion order.
// Callers never touch the slice directly; every mutation goes through a
// Timeline method.
//
// # Record, Then Project
//
// Every mutator first records into the event store. Only then, and only when
// a sink is attached, is the change projected onto that sink. A Timeline
// without a sink is a pure data structure.
//
// # Looping
//
// With SetLoop, materialization treats [loopStart, loopEnd) as repeating:
// a request longer than the remaining loop is split into slices, each
// re-entering the loop at loopStart, until the whole duration is covered.
//
// # Errors
//
// Failures are returned as *Error with a Code:
//
//   - CodeContractViolation: caller error (non-finite time, duration <= 0,
//     inverted loop bounds).
//   - CodeInvalidState: a legitimate runtime condition, currently only
//     ErrRampWithoutAnchor from CancelAndHoldAtTime.
//   - CodeInvariantViolation: a defect inside the timeline.
package automation
