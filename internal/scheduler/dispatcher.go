package scheduler

import (
	"log/slog"
	"math"
	"sync"

	"github.com/roach88/lookahead/internal/clock"
)

// Callback is invoked with the time it was scheduled for.
type Callback func(scheduled float64)

// ID identifies a scheduled callback for cancellation.
type ID int64

// AlreadyFired is returned by ScheduleRealtimeCallback when the callback ran
// inline. There is nothing left to cancel.
const AlreadyFired ID = -1

const (
	// DefaultLookAhead is how far ahead of the clock the coarse loop commits,
	// in seconds.
	DefaultLookAhead = 0.2

	// DefaultFrameInterval is the realtime sub-loop period, one 60 Hz frame.
	DefaultFrameInterval = 1.0 / 60

	// DefaultFirstID is the id given to the first scheduled callback.
	DefaultFirstID = 101
)

// State describes which loops of a Dispatcher are armed.
type State int

const (
	// StateIdle means both queues are empty.
	StateIdle State = iota

	// StateRunning means the coarse loop is armed.
	StateRunning

	// StateRunningRealtime means the realtime sub-loop is armed, with or
	// without the coarse loop.
	StateRunningRealtime
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateRunningRealtime:
		return "running_realtime"
	default:
		return "unknown"
	}
}

// Dispatcher fires callbacks ahead of a clock.
//
// INVARIANTS:
//   - pending and realtime are sorted by (time, id)
//   - an entry leaves its queue before its callback runs, exactly once
//   - running is true while pending is non-empty
//   - realtimeRunning is true while realtime is non-empty
//   - at most one pass executes at a time (pass is held for its duration)
type Dispatcher struct {
	clock         clock.Clock
	lookAhead     float64
	frameInterval float64
	ids           *clock.Sequence

	mu              sync.Mutex
	pending         queue
	realtime        queue
	running         bool
	realtimeRunning bool
	schedulingTime  float64
	passing         bool // a Tick or Frame is executing
	driven          bool // Run owns the passes
	frameRequested  bool // a frame pass is owed to the driving goroutine

	// pass serializes Tick and Frame
	pass sync.Mutex

	// wake nudges Run to re-evaluate its timers (buffered, size 1)
	wake chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLookAhead sets the coarse lookahead window in seconds.
// Non-positive values are ignored.
func WithLookAhead(d float64) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.lookAhead = d
		}
	}
}

// WithFrameInterval sets the realtime sub-loop period in seconds.
// Non-positive values are ignored.
func WithFrameInterval(d float64) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.frameInterval = d
		}
	}
}

// WithFirstID sets the id handed to the first scheduled callback.
func WithFirstID(id int64) Option {
	return func(ds *Dispatcher) {
		ds.ids = clock.NewSequenceAt(id - 1)
	}
}

// New creates an idle Dispatcher reading time from c.
func New(c clock.Clock, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:         c,
		lookAhead:     DefaultLookAhead,
		frameInterval: DefaultFrameInterval,
		ids:           clock.NewSequenceAt(DefaultFirstID - 1),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LookAhead returns the coarse lookahead window.
func (d *Dispatcher) LookAhead() float64 {
	return d.lookAhead
}

// FrameInterval returns the realtime sub-loop period.
func (d *Dispatcher) FrameInterval() float64 {
	return d.frameInterval
}

// CurrentSchedulingTime returns the horizon of the most recent coarse tick.
func (d *Dispatcher) CurrentSchedulingTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schedulingTime
}

// State reports which loops are armed.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.realtimeRunning:
		return StateRunningRealtime
	case d.running:
		return StateRunning
	default:
		return StateIdle
	}
}

// Armed reports whether the coarse loop and the realtime sub-loop are
// running. A driver keeps a timer per armed loop.
func (d *Dispatcher) Armed() (coarse, realtime bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running, d.realtimeRunning
}

// Len returns the number of queued callbacks across both queues.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) + len(d.realtime)
}

// ScheduleCallback queues cb to fire once the coarse loop's horizon reaches t.
func (d *Dispatcher) ScheduleCallback(t float64, cb Callback) (ID, error) {
	return d.schedule(t, cb, false)
}

// ScheduleRealtimeCallback queues cb to fire within a frame of t.
//
// If t has already passed, cb runs inline before returning and the result is
// AlreadyFired. If t falls inside the horizon the coarse loop has already
// committed to, cb goes straight to the realtime sub-loop, and a sub-loop
// that was idle runs its first pass immediately. Otherwise cb waits on the
// main queue and is promoted when a coarse tick reaches it.
//
// While a pass is executing or Run is driving the Dispatcher, nothing runs on
// the caller's goroutine: a past-due cb joins the realtime queue under a real
// ID and the first frame pass is handed to the goroutine doing the driving.
func (d *Dispatcher) ScheduleRealtimeCallback(t float64, cb Callback) (ID, error) {
	if err := validate(t, cb); err != nil {
		return 0, err
	}

	d.mu.Lock()
	handOff := d.passing || d.driven
	due := t <= d.clock.CurrentTime()
	if due && !handOff {
		d.mu.Unlock()
		slog.Debug("realtime callback fired inline", "time", t)
		cb(t)
		return AlreadyFired, nil
	}
	if !due && t > d.schedulingTime {
		d.mu.Unlock()
		return d.schedule(t, cb, true)
	}

	id := ID(d.ids.Next())
	d.realtime.push(entry{id: id, time: t, callback: cb, realtime: true})
	start := !d.realtimeRunning
	d.realtimeRunning = true
	if handOff && (start || due) {
		d.frameRequested = true
	}
	d.mu.Unlock()

	slog.Debug("realtime callback queued", "id", id, "time", t, "deferred", handOff)
	if start && !handOff {
		d.Frame()
	}
	d.signal()
	return id, nil
}

// CancelCallback removes id from both queues. Ids that already fired or were
// never issued are ignored.
func (d *Dispatcher) CancelCallback(id ID) {
	d.CancelCallbacks(id)
}

// CancelCallbacks removes every listed id from both queues.
func (d *Dispatcher) CancelCallbacks(ids ...ID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		if d.pending.remove(id) || d.realtime.remove(id) {
			slog.Debug("callback cancelled", "id", id)
		}
	}
	d.running = len(d.pending) > 0
	d.realtimeRunning = len(d.realtime) > 0
}

// Tick runs one coarse pass and returns how many callbacks it invoked
// directly. Realtime entries reaching the horizon are moved to the sub-loop
// instead; an idle sub-loop gets its first frame pass inside this one.
//
// Run calls Tick every lookAhead/2 while the coarse loop is armed. Virtual
// time drivers call it themselves. Tick must not be called from a callback.
func (d *Dispatcher) Tick() int {
	d.pass.Lock()
	defer d.pass.Unlock()

	d.mu.Lock()
	d.passing = true
	now := d.clock.CurrentTime()
	horizon := now + d.lookAhead
	// recorded up front so realtime callbacks scheduled from inside this
	// pass see the horizon being drained
	d.schedulingTime = horizon

	fired := 0
	for {
		if d.frameRequested {
			d.frameLocked()
			continue
		}
		e, ok := d.pending.popDue(horizon)
		if !ok {
			break
		}
		if e.realtime {
			d.realtime.push(e)
			if !d.realtimeRunning {
				d.realtimeRunning = true
				d.frameRequested = true
			}
			continue
		}

		d.mu.Unlock()
		e.callback(e.time)
		fired++
		d.mu.Lock()
	}

	d.passing = false
	wasRunning := d.running
	d.running = len(d.pending) > 0
	remaining := len(d.pending)
	d.mu.Unlock()

	slog.Debug("dispatcher tick",
		"now", now,
		"horizon", horizon,
		"fired", fired,
		"pending", remaining,
	)
	if wasRunning && remaining == 0 {
		slog.Debug("coarse loop idle")
	}
	d.signal()
	return fired
}

// Frame runs one realtime pass, firing every realtime entry due within one
// frame of now, and returns how many fired. Frame must not be called from a
// callback.
func (d *Dispatcher) Frame() int {
	d.pass.Lock()
	defer d.pass.Unlock()

	d.mu.Lock()
	d.passing = true
	fired := d.frameLocked()
	d.passing = false
	d.mu.Unlock()

	d.signal()
	return fired
}

// frameLocked runs a realtime pass. d.mu is held on entry and on return, and
// released around each callback.
func (d *Dispatcher) frameLocked() int {
	d.frameRequested = false
	now := d.clock.CurrentTime()
	horizon := now + d.frameInterval
	// nested realtime schedules join this pass instead of starting another
	d.realtimeRunning = true

	fired := 0
	for {
		e, ok := d.realtime.popDue(horizon)
		if !ok {
			break
		}
		d.mu.Unlock()
		e.callback(e.time)
		fired++
		d.mu.Lock()
	}

	d.frameRequested = false
	d.realtimeRunning = len(d.realtime) > 0
	if fired > 0 {
		slog.Debug("dispatcher frame",
			"now", now,
			"horizon", horizon,
			"fired", fired,
			"realtime_pending", len(d.realtime),
		)
	}
	return fired
}

// frameDue reports whether a frame pass was handed off to the driver.
func (d *Dispatcher) frameDue() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameRequested
}

// setDriven marks whether Run is driving the Dispatcher.
func (d *Dispatcher) setDriven(v bool) {
	d.mu.Lock()
	d.driven = v
	d.mu.Unlock()
}

func (d *Dispatcher) schedule(t float64, cb Callback, realtime bool) (ID, error) {
	if err := validate(t, cb); err != nil {
		return 0, err
	}

	d.mu.Lock()
	id := ID(d.ids.Next())
	d.pending.push(entry{id: id, time: t, callback: cb, realtime: realtime})
	started := !d.running
	d.running = true
	d.mu.Unlock()

	slog.Debug("callback scheduled", "id", id, "time", t, "realtime", realtime)
	if started {
		slog.Debug("coarse loop started", "look_ahead", d.lookAhead)
	}
	d.signal()
	return id, nil
}

// signal wakes Run without blocking; the buffer of 1 coalesces signals.
func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func validate(t float64, cb Callback) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return ErrNonFiniteTime
	}
	if cb == nil {
		return ErrNilCallback
	}
	return nil
}
