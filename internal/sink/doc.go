// Package sink provides automation sinks that do not render audio.
//
// A sink accepts the three instructions a timeline emits: set a value at a
// time, ramp to a value by a time, and cancel everything from a time. The
// sinks here record those instructions (Recorder), log them (Logger) or fan
// them out to several other sinks (Tee). They satisfy automation.Sink
// structurally; this package does not import automation.
package sink
