package harness

import (
	"fmt"
	"math"

	"github.com/roach88/lookahead/internal/clock"
	"github.com/roach88/lookahead/internal/scheduler"
)

// DefaultUntil bounds simulations whose dispatch block sets no until.
const DefaultUntil = 60.0

// Simulate steps d on c from one loop deadline to the next, the way
// Dispatcher.Run's timers would fire, until d goes idle or the next deadline
// is past until. Returns the number of passes run.
//
// A coarse deadline is armed lookAhead/2 after the coarse loop is seen
// running, a frame deadline one frame interval after the realtime sub-loop
// is. When both fall due together the coarse tick runs first.
func Simulate(d *scheduler.Dispatcher, c *clock.Manual, until float64) int {
	inf := math.Inf(1)
	nextTick, nextFrame := inf, inf
	passes := 0

	for {
		coarse, realtime := d.Armed()
		now := c.CurrentTime()
		if coarse && nextTick == inf {
			nextTick = now + d.LookAhead()/2
		}
		if realtime && nextFrame == inf {
			nextFrame = now + d.FrameInterval()
		}

		next := math.Min(nextTick, nextFrame)
		if next == inf || next > until {
			return passes
		}

		c.Set(next)
		if nextTick == next {
			nextTick = inf
			d.Tick()
			passes++
		}
		if nextFrame == next {
			nextFrame = inf
			d.Frame()
			passes++
		}
	}
}

// dispatch schedules the scenario's callbacks and simulates them.
func (h *Harness) dispatch() error {
	spec := h.scenario.Dispatch
	d := scheduler.New(h.clock,
		scheduler.WithLookAhead(spec.LookAhead),
		scheduler.WithFrameInterval(spec.FrameInterval),
	)

	for _, cb := range spec.Callbacks {
		if cb.Render != nil {
			h.addRender(cb.Name, cb.Render.Timeline)
		}
	}

	// current id per callback name, for cancellation
	ids := make(map[string]scheduler.ID)

	var schedule func(cb CallbackSpec, n int) error
	schedule = func(cb CallbackSpec, n int) error {
		at := cb.Time + float64(n)*cb.Every
		fn := func(scheduled float64) {
			h.fire(cb, n, scheduled)
			for _, name := range cb.Cancels {
				if id, ok := ids[name]; ok {
					d.CancelCallback(id)
				}
			}
			if n < cb.Repeat {
				if err := schedule(cb, n+1); err != nil {
					h.result.AddError(err.Error())
				}
			}
		}

		var id scheduler.ID
		var err error
		if cb.Realtime {
			id, err = d.ScheduleRealtimeCallback(at, fn)
		} else {
			id, err = d.ScheduleCallback(at, fn)
		}
		if err != nil {
			return fmt.Errorf("schedule %s at %v: %w", cb.Name, at, err)
		}
		// an inline firing may already have scheduled the next repeat
		if id != scheduler.AlreadyFired {
			ids[cb.Name] = id
		}
		return nil
	}

	for _, cb := range spec.Callbacks {
		if err := schedule(cb, 0); err != nil {
			return err
		}
	}
	for _, name := range spec.Cancel {
		if id, ok := ids[name]; ok {
			d.CancelCallback(id)
		}
	}

	until := spec.Until
	if until == 0 {
		until = DefaultUntil
	}
	passes := Simulate(d, h.clock, until)

	h.logger.Info("dispatch simulated",
		"passes", passes,
		"firings", len(h.result.Trace.Firings),
		"state", d.State().String(),
		"clock", h.clock.CurrentTime(),
	)
	return nil
}

// fire records the n-th firing of cb and performs its render.
func (h *Harness) fire(cb CallbackSpec, n int, scheduled float64) {
	h.result.Trace.Firings = append(h.result.Trace.Firings, Firing{
		Seq:       h.firings.Next(),
		Name:      cb.Name,
		Scheduled: scheduled,
		At:        h.clock.CurrentTime(),
		Realtime:  cb.Realtime,
	})

	if r := cb.Render; r != nil {
		offset := r.Offset + float64(n)*cb.Every
		h.materialize(cb.Name, r.Timeline, scheduled, offset, r.Duration)
	}
}
