// Package clock provides the time sources shared by the automation and
// scheduling packages.
//
// Two notions of time live here:
//
// Timeline time is a float64 in seconds, read through the Clock interface.
// It must never decrease between reads. Wall is the production clock; Manual
// is driven explicitly by tests and by the harness simulator.
//
// Logical order is an int64 from Sequence. Timelines use it to break ties
// between events that share a time, and the scheduler uses it for callback
// ids. Each owner holds its own Sequence, so independent instances never
// share counters.
package clock
