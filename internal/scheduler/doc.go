// Package scheduler implements the lookahead Dispatcher.
//
// A Dispatcher holds callbacks keyed by the timeline time they are meant for
// and fires them slightly early, so collaborators can hand sample-accurate
// instructions to a renderer before the moment arrives.
//
// Two polling loops cooperate:
//
//   - The coarse loop (Tick) runs every lookAhead/2 while entries remain. It
//     fires everything due before now+lookAhead and records that horizon as
//     the current scheduling time.
//   - The realtime sub-loop (Frame) runs at frame rate while realtime entries
//     remain. It fires only what is due within one frame, for callbacks that
//     must not fire a whole lookahead early.
//
// Callbacks always receive the time they were scheduled for, never the time
// of the pass that fired them. Entries are removed before their callback
// runs, so a callback may schedule (loop continuation) or cancel re-entrantly.
//
// Thread-safety: all methods are safe for concurrent use. Passes never
// overlap: Tick and Frame hold a pass lock for their whole duration, and
// callbacks execute on the goroutine running the pass with no state lock
// held. While Run drives the Dispatcher, or while a pass is executing,
// ScheduleRealtimeCallback never fires callbacks on the caller's goroutine;
// it hands the work to the driving goroutine instead.
package scheduler
