package automation

import (
	"log/slog"
	"math"
)

// loopEpsilon is the smallest remaining duration worth another loop slice.
// Anything shorter is float residue from repeated subtraction.
const loopEpsilon = 1e-9

// Materialize projects the timeline window [offsetTime, offsetTime+duration)
// onto s, where a timeline time x lands at sink time dspTime + (x - offsetTime).
//
// When looping, the window is cut at loopEnd and continues from loopStart,
// as many times as the duration requires.
func (tl *Timeline) Materialize(s Sink, dspTime, offsetTime, duration float64) error {
	if s == nil {
		return contractError("Materialize", "sink is nil")
	}
	if !finite(dspTime, offsetTime, duration) {
		return contractError("Materialize", "dspTime %v, offsetTime %v and duration %v must be finite", dspTime, offsetTime, duration)
	}
	if duration <= 0 {
		return contractError("Materialize", "duration %v must be positive", duration)
	}

	if !tl.looping {
		return tl.materializeSlice(s, dspTime, offsetTime, offsetTime+duration, duration)
	}

	remaining := duration
	offset := offsetTime
	for first := true; first || remaining > loopEpsilon; first = false {
		start := tl.wrap(offset)
		length := math.Min(remaining, tl.loopEnd-start)
		end := math.Min(tl.loopEnd, start+length)

		if err := tl.materializeSlice(s, dspTime, start, end, length); err != nil {
			return err
		}

		dspTime += length
		remaining -= length
		offset = tl.loopStart
	}
	return nil
}

// wrap maps a timeline offset into the loop. Offsets before loopEnd are
// used as-is so material ahead of the loop plays through into it.
func (tl *Timeline) wrap(offset float64) float64 {
	if offset < tl.loopEnd {
		return offset
	}
	w := tl.loopStart + math.Mod(offset-tl.loopStart, tl.loopEnd-tl.loopStart)
	if w >= tl.loopEnd {
		w = tl.loopStart
	}
	return w
}

// materializeSlice renders the events of [start, end) onto s beginning at
// sink time dspTime. length is the sink-side extent of the slice and places
// the trailing instruction at dspTime+length.
func (tl *Timeline) materializeSlice(s Sink, dspTime, start, end, length float64) error {
	slog.Debug("materialize slice",
		"dsp_time", dspTime,
		"start", start,
		"end", end,
		"events", len(tl.events),
	)

	leading, prev := -1, -1
	for i, e := range tl.events {
		switch {
		case e.Time < start:
			//   start     end
			// --e--|=======|------>
			leading, prev = i, i

		case e.Time >= end:
			//   start     end
			// -----|=======|--e--->
			if leading >= 0 {
				s.SetValueAtTime(interpolate(start, tl.events[leading], e), dspTime)
			}
			if prev < 0 {
				return nil
			}
			p := tl.events[prev]
			switch e.Kind {
			case KindSet:
				s.SetValueAtTime(p.Value, dspTime+length)
			case KindRamp:
				s.LinearRampToValueAtTime(interpolate(end, p, e), dspTime+length)
			default:
				return invariantError("Materialize", ErrUnknownKind, "event kind %v at %v", e.Kind, e.Time)
			}
			return nil

		default:
			//   start     end
			// -----|==e====|------>
			at := dspTime + (e.Time - start)
			if leading >= 0 && at != dspTime {
				s.SetValueAtTime(interpolate(start, tl.events[leading], e), dspTime)
			}
			leading, prev = -1, i

			switch e.Kind {
			case KindSet:
				s.SetValueAtTime(e.Value, at)
			case KindRamp:
				s.LinearRampToValueAtTime(e.Value, at)
			default:
				return invariantError("Materialize", ErrUnknownKind, "event kind %v at %v", e.Kind, e.Time)
			}
		}
	}

	// the window starts after every event: one value holds throughout
	if leading >= 0 {
		s.SetValueAtTime(tl.events[leading].Value, dspTime)
	}
	return nil
}
