// Package harness runs automation and scheduling scenarios deterministically.
//
// A scenario builds named timelines, renders windows of them onto recording
// sinks, drives a Dispatcher on a virtual clock, and checks assertions
// against the resulting trace.
//
// # Scenario Format
//
// Scenarios are YAML (.yaml, .yml) or CUE (.cue) files:
//
//	name: fade_interruption
//	description: "A fade-in interrupted halfway and faded back out"
//	timelines:
//	  - name: gain
//	    base: 1
//	    loop: { start: 0, end: 4 }
//	    ops:
//	      - { op: set, value: 0, time: 0 }
//	      - { op: ramp, value: 1, time: 4 }
//	      - { op: hold, time: 2 }
//	      - { op: envelope, points: [{ value: 0, time: 0 }, { value: 1, time: 1 }] }
//	renders:
//	  - { timeline: gain, dsp: 0, offset: 0, duration: 8 }
//	dispatch:
//	  look_ahead: 0.2
//	  until: 10
//	  callbacks:
//	    - { name: bar, time: 1, every: 2, repeat: 3 }
//	    - { name: flash, time: 1.5, realtime: true }
//	    - name: play
//	      time: 0.5
//	      render: { timeline: gain, offset: 0, duration: 2 }
//	  cancel: [flash]
//	assertions:
//	  - { type: instruction_count, render: gain, count: 4 }
//	  - { type: fire_order, names: [bar, flash] }
//
// # Assertion Types
//
//   - instruction_count: a render produced exactly count instructions
//   - instruction: the instruction at index has the given op, value and time
//   - value_at: a timeline's value at time
//   - event_count: a timeline holds exactly count events
//   - fire_order: callbacks fired in this order (other names are ignored)
//   - fire_count: a callback fired exactly count times
//   - error: an op failed with the given error code
//
// An op that fails without a matching error assertion fails the scenario.
//
// # Deterministic Execution
//
// Everything runs on a clock.Manual. The simulator steps it from one loop
// deadline to the next, exactly as Dispatcher.Run's timers would fire, so a
// scenario yields the same trace on every run. Trace.Text renders the trace
// for golden comparison; it prints scheduled times only.
package harness
