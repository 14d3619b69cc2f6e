package automation

import (
	"cmp"
	"fmt"
	"math"
)

// Kind distinguishes automation event types.
type Kind int

const (
	// KindSet jumps to Value at Time.
	KindSet Kind = iota + 1
	// KindRamp ramps linearly from the previous event to Value, arriving at Time.
	KindRamp
)

// String returns the lower-case instruction name.
func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindRamp:
		return "ramp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one timestamped automation instruction.
type Event struct {
	Time  float64
	Value float64
	Kind  Kind

	// Seq orders events that share a Time. Assigned on insertion.
	Seq int64
}

// Point is a (value, time) pair used by SetEnvelope.
type Point struct {
	Value float64
	Time  float64
}

// Sink receives the instructions a Timeline projects.
//
// An audio engine parameter, a recorder or a logger can all be sinks.
type Sink interface {
	SetValueAtTime(value, t float64)
	LinearRampToValueAtTime(value, t float64)
	CancelScheduledValues(t float64)
}

// compareEvents orders by time, then insertion sequence.
func compareEvents(a, b Event) int {
	if c := cmp.Compare(a.Time, b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// interpolate returns the value at t on the segment ending at b.
// A ramp interpolates linearly from a; a set holds a's value until b.
// Callers guarantee a.Time < b.Time.
func interpolate(t float64, a, b Event) float64 {
	if b.Kind != KindRamp {
		return a.Value
	}
	progress := (t - a.Time) / (b.Time - a.Time)
	delta := b.Value - a.Value
	// explicit conversion keeps the product rounded before the add (no FMA)
	return a.Value + float64(delta*progress)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
