package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Run drives the coarse and realtime loops from wall-clock timers until ctx
// is cancelled, then returns ctx.Err().
//
// CRITICAL: call Run from exactly one goroutine. Callbacks run on it.
//
// The coarse timer is armed every lookAhead/2 while the coarse loop runs and
// the frame timer every frame interval while the realtime sub-loop runs. A
// frame pass handed off by ScheduleRealtimeCallback runs as soon as Run
// wakes. An idle Dispatcher costs nothing: Run just waits for the next
// schedule.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("dispatcher starting",
		"look_ahead", d.lookAhead,
		"frame_interval", d.frameInterval,
	)
	d.setDriven(true)
	defer d.setDriven(false)

	coarse := time.NewTimer(0)
	coarse.Stop()
	defer coarse.Stop()
	frame := time.NewTimer(0)
	frame.Stop()
	defer frame.Stop()

	coarseArmed, frameArmed := false, false
	for {
		if d.frameDue() {
			d.Frame()
			continue
		}

		running, realtimeRunning := d.Armed()

		if running && !coarseArmed {
			coarse.Reset(seconds(d.lookAhead / 2))
			coarseArmed = true
		}
		if realtimeRunning && !frameArmed {
			frame.Reset(seconds(d.frameInterval))
			frameArmed = true
		}

		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopping: context cancelled")
			return ctx.Err()

		case <-d.wake:
			// state may have changed; re-arm above

		case <-coarse.C:
			coarseArmed = false
			d.Tick()

		case <-frame.C:
			frameArmed = false
			d.Frame()
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
