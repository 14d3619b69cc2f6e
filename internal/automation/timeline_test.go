package automation

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookahead/internal/clock"
	"github.com/roach88/lookahead/internal/sink"
)

const tolerance = 1e-9

func TestTimeline_SetValueAtTime_EventCount(t *testing.T) {
	tl := New()
	assert.Equal(t, 0, tl.Len())

	require.NoError(t, tl.SetValueAtTime(1, 0.5))
	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_SortedAfterEveryInsert(t *testing.T) {
	tl := New()
	calls := []struct {
		kind  Kind
		value float64
		time  float64
	}{
		{KindSet, 10, 3},
		{KindRamp, 20, 1},
		{KindSet, 30, 2},
		{KindSet, 40, 1},
		{KindRamp, 50, 0.5},
		{KindSet, 60, -1},
		{KindRamp, 70, 1},
	}

	for _, c := range calls {
		var err error
		if c.kind == KindSet {
			err = tl.SetValueAtTime(c.value, c.time)
		} else {
			err = tl.LinearRampToValueAtTime(c.value, c.time)
		}
		require.NoError(t, err)

		events := tl.Events()
		assert.True(t, sort.SliceIsSorted(events, func(i, j int) bool {
			return compareEvents(events[i], events[j]) < 0
		}), "events out of order after inserting %v@%v", c.value, c.time)
	}

	// the three events at t=1 keep insertion order
	var atOne []float64
	for _, e := range tl.Events() {
		if e.Time == 1 {
			atOne = append(atOne, e.Value)
		}
	}
	assert.Equal(t, []float64{20, 40, 70}, atOne)
}

func TestTimeline_SequencesArePerInstance(t *testing.T) {
	a, b := New(), New()
	require.NoError(t, a.SetValueAtTime(0, 0))
	require.NoError(t, a.SetValueAtTime(0, 1))
	require.NoError(t, b.SetValueAtTime(0, 0))

	assert.Equal(t, int64(1), b.Events()[0].Seq)
	assert.Equal(t, int64(2), a.Events()[1].Seq)
}

func TestTimeline_EventsIsACopy(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0))

	events := tl.Events()
	events[0].Value = 42

	v, err := tl.ValueAtTime(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestTimeline_ValueAtTime_Empty(t *testing.T) {
	tl := New(WithBaseValue(0.7))

	v, err := tl.ValueAtTime(123)
	require.NoError(t, err)
	assert.Equal(t, 0.7, v)
	assert.Equal(t, 0.7, tl.BaseValue())
}

func TestTimeline_ValueAtTime_Interpolation(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0.5))
	require.NoError(t, tl.LinearRampToValueAtTime(0, 1.5))

	tests := []struct {
		name string
		at   float64
		want float64
	}{
		{"at set", 0.5, 1},
		// linear between (0.5, 1) and (1.5, 0); the set value does not hold
		{"ramp midpoint", 1, 0.5},
		{"quarter through ramp", 0.75, 0.75},
		{"at ramp end", 1.5, 0},
		{"after last event holds", 9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tl.ValueAtTime(tt.at)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, tolerance)
		})
	}
}

func TestTimeline_ValueAtTime_SetHoldsUntilNextSet(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0))
	require.NoError(t, tl.SetValueAtTime(3, 2))

	v, err := tl.ValueAtTime(1.999)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestTimeline_ValueAtTime_BeforeFirstEvent(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0.5))
	require.NoError(t, tl.LinearRampToValueAtTime(0, 1.5))

	_, err := tl.ValueAtTime(0.25)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
	assert.True(t, errors.Is(err, ErrNoAnchor))
}

func TestTimeline_ValueAtTime_NonFinite(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0))

	_, err := tl.ValueAtTime(math.Inf(1))
	assert.True(t, IsContractViolation(err))

	_, err = tl.ValueAtTime(math.NaN())
	assert.True(t, IsContractViolation(err))
}

func TestTimeline_Mutators_RejectNonFinite(t *testing.T) {
	tl := New()

	assert.True(t, IsContractViolation(tl.SetValueAtTime(math.NaN(), 0)))
	assert.True(t, IsContractViolation(tl.SetValueAtTime(0, math.Inf(-1))))
	assert.True(t, IsContractViolation(tl.LinearRampToValueAtTime(0, math.NaN())))
	assert.True(t, IsContractViolation(tl.CancelScheduledValues(math.NaN())))
	assert.True(t, IsContractViolation(tl.CancelAndHoldAtTime(math.Inf(1))))
	assert.Equal(t, 0, tl.Len())
}

func TestTimeline_CancelScheduledValues_HalfOpen(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(0, 0))
	require.NoError(t, tl.SetValueAtTime(1, 1))
	require.NoError(t, tl.LinearRampToValueAtTime(2, 2))

	require.NoError(t, tl.CancelScheduledValues(1))

	events := tl.Events()
	require.Len(t, events, 1, "the event exactly at the cancel time is dropped")
	assert.Equal(t, 0.0, events[0].Time)
}

func TestTimeline_CancelAndHold_Midpoint(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(0, 0))
	require.NoError(t, tl.LinearRampToValueAtTime(1, 1))

	require.NoError(t, tl.CancelAndHoldAtTime(0.5))

	events := tl.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 0.5, events[1].Time)
	assert.Equal(t, 0.5, events[1].Value)
	assert.Equal(t, KindRamp, events[1].Kind)
}

func TestTimeline_CancelAndHold_FadeInterruption(t *testing.T) {
	const startTime = 100.18374782394
	const fadeTime = 4.0

	tl := New()
	// fade in
	require.NoError(t, tl.SetValueAtTime(0, startTime))
	require.NoError(t, tl.LinearRampToValueAtTime(1, startTime+fadeTime))
	// fade out from wherever the fade-in got to
	require.NoError(t, tl.CancelAndHoldAtTime(startTime+fadeTime*0.5))
	require.NoError(t, tl.LinearRampToValueAtTime(0, startTime+fadeTime))

	events := tl.Events()
	require.Len(t, events, 3)
	assert.InDelta(t, startTime, events[0].Time, tolerance)
	assert.Equal(t, 0.0, events[0].Value)
	assert.InDelta(t, startTime+2, events[1].Time, tolerance)
	assert.InDelta(t, 0.5, events[1].Value, tolerance)
	assert.InDelta(t, startTime+fadeTime, events[2].Time, tolerance)
	assert.Equal(t, 0.0, events[2].Value)

	rec := sink.NewRecorder()
	require.NoError(t, tl.Materialize(rec, startTime, startTime, fadeTime))

	got := rec.Instructions()
	require.Len(t, got, 3)
	assert.Equal(t, sink.OpSet, got[0].Op)
	assert.InDelta(t, startTime, got[0].Time, tolerance)
	assert.Equal(t, 0.0, got[0].Value)

	assert.Equal(t, sink.OpRamp, got[1].Op)
	assert.InDelta(t, startTime+2, got[1].Time, tolerance)
	assert.InDelta(t, 0.5, got[1].Value, tolerance)

	assert.Equal(t, sink.OpRamp, got[2].Op)
	assert.InDelta(t, startTime+fadeTime, got[2].Time, tolerance)
	assert.InDelta(t, 0.0, got[2].Value, tolerance)
}

func TestTimeline_CancelAndHold_RampWithoutAnchor(t *testing.T) {
	tl := New()
	require.NoError(t, tl.LinearRampToValueAtTime(1, 1))
	require.NoError(t, tl.LinearRampToValueAtTime(2, 2))

	err := tl.CancelAndHoldAtTime(0.5)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
	assert.True(t, errors.Is(err, ErrRampWithoutAnchor))
	assert.False(t, IsContractViolation(err))
	assert.Equal(t, 2, tl.Len(), "a failed hold leaves the timeline untouched")
}

func TestTimeline_CancelAndHold_FewerThanTwoEvents(t *testing.T) {
	tl := New()
	require.NoError(t, tl.CancelAndHoldAtTime(1))

	require.NoError(t, tl.SetValueAtTime(3, 2))
	require.NoError(t, tl.CancelAndHoldAtTime(1))
	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_CancelAndHold_NextIsSet(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0))
	require.NoError(t, tl.SetValueAtTime(5, 2))

	require.NoError(t, tl.CancelAndHoldAtTime(1))

	events := tl.Events()
	require.Len(t, events, 2)
	assert.Equal(t, Event{Time: 1, Value: 1, Kind: KindSet, Seq: events[1].Seq}, events[1])
}

func TestTimeline_CancelAndHold_AfterLastEvent(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(1, 0))
	require.NoError(t, tl.LinearRampToValueAtTime(3, 2))

	require.NoError(t, tl.CancelAndHoldAtTime(5))

	events := tl.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 5.0, events[2].Time)
	assert.Equal(t, 3.0, events[2].Value)
	assert.Equal(t, KindSet, events[2].Kind)
}

func TestTimeline_SetLoop(t *testing.T) {
	tl := New()
	assert.Equal(t, 0.0, tl.LoopDuration())

	require.NoError(t, tl.SetLoop(1, 5))
	start, end, ok := tl.Loop()
	assert.True(t, ok)
	assert.Equal(t, 1.0, start)
	assert.Equal(t, 5.0, end)
	assert.Equal(t, 4.0, tl.LoopDuration())

	tl.ClearLoop()
	_, _, ok = tl.Loop()
	assert.False(t, ok)
}

func TestTimeline_SetLoop_RejectsBadBounds(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
	}{
		{"inverted", 4, 1},
		{"empty", 2, 2},
		{"nan", math.NaN(), 1},
		{"infinite end", 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := New()
			err := tl.SetLoop(tt.start, tt.end)
			assert.True(t, IsContractViolation(err))
			_, _, ok := tl.Loop()
			assert.False(t, ok)
		})
	}
}

func TestTimeline_SetValue_UsesClock(t *testing.T) {
	tl := New()
	assert.True(t, IsContractViolation(tl.SetValue(1)))

	c := clock.NewManual(3)
	tl = New(WithClock(c))
	require.NoError(t, tl.SetValue(0.25))

	events := tl.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 3.0, events[0].Time)
	assert.Equal(t, 0.25, events[0].Value)
}

func TestTimeline_SetEnvelope(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(9, 5))

	require.NoError(t, tl.SetEnvelope([]Point{
		{Value: 0, Time: 0},
		{Value: 1, Time: 1},
		{Value: 1, Time: 2},
		{Value: 0, Time: 3},
	}))

	events := tl.Events()
	require.Len(t, events, 4, "the envelope replaces events after its first point")
	kinds := []Kind{events[0].Kind, events[1].Kind, events[2].Kind, events[3].Kind}
	assert.Equal(t, []Kind{KindSet, KindRamp, KindSet, KindRamp}, kinds)
}

func TestTimeline_SetEnvelope_Invalid(t *testing.T) {
	tl := New()
	assert.True(t, IsContractViolation(tl.SetEnvelope(nil)))
	assert.True(t, IsContractViolation(tl.SetEnvelope([]Point{{Value: math.NaN()}})))
}

func TestTimeline_LiveProjection(t *testing.T) {
	rec := sink.NewRecorder()
	tl := New(WithSink(rec))

	require.NoError(t, tl.SetValueAtTime(0.123, 4))

	got := rec.Instructions()
	require.Len(t, got, 2)
	assert.Equal(t, sink.Instruction{Op: sink.OpCancel, Time: 4}, got[0])
	assert.Equal(t, sink.Instruction{Op: sink.OpSet, Value: 0.123, Time: 4}, got[1])

	rec.Reset()
	require.NoError(t, tl.LinearRampToValueAtTime(1, 5))
	assert.Equal(t, []sink.Instruction{
		{Op: sink.OpCancel, Time: 5},
		{Op: sink.OpRamp, Value: 1, Time: 5},
	}, rec.Instructions())

	rec.Reset()
	require.NoError(t, tl.CancelScheduledValues(4.5))
	assert.Equal(t, []sink.Instruction{{Op: sink.OpCancel, Time: 4.5}}, rec.Instructions())
}

func TestTimeline_LiveProjection_InterpolatesIntoEarlierRamp(t *testing.T) {
	rec := sink.NewRecorder()
	tl := New()
	require.NoError(t, tl.SetValueAtTime(0, 0))
	require.NoError(t, tl.LinearRampToValueAtTime(4, 4))

	tl.Attach(rec)
	require.NoError(t, tl.SetValueAtTime(10, 6))

	// cancel at 6, then the window from 6 holds the new set only
	assert.Equal(t, []sink.Instruction{
		{Op: sink.OpCancel, Time: 6},
		{Op: sink.OpSet, Value: 10, Time: 6},
	}, rec.Instructions())

	rec.Reset()
	require.NoError(t, tl.SetValueAtTime(7, 2))
	// the new set sits on the window start, so no interpolated lead-in
	assert.Equal(t, []sink.Instruction{
		{Op: sink.OpCancel, Time: 2},
		{Op: sink.OpSet, Value: 7, Time: 2},
		{Op: sink.OpRamp, Value: 4, Time: 4},
		{Op: sink.OpSet, Value: 10, Time: 6},
	}, rec.Instructions())
}

func TestTimeline_LiveProjection_IgnoresLoop(t *testing.T) {
	rec := sink.NewRecorder()
	tl := New()
	require.NoError(t, tl.SetValueAtTime(0, 0))
	require.NoError(t, tl.LinearRampToValueAtTime(1, 1))
	require.NoError(t, tl.SetLoop(0, 2))
	tl.Attach(rec)

	// past loopEnd: projected where it was written, not wrapped to loopStart
	require.NoError(t, tl.SetValueAtTime(0.5, 3))
	assert.Equal(t, []sink.Instruction{
		{Op: sink.OpCancel, Time: 3},
		{Op: sink.OpSet, Value: 0.5, Time: 3},
	}, rec.Instructions())

	// inside the loop: the window runs straight through loopEnd
	rec.Reset()
	require.NoError(t, tl.SetValueAtTime(0.25, 1.5))
	assert.Equal(t, []sink.Instruction{
		{Op: sink.OpCancel, Time: 1.5},
		{Op: sink.OpSet, Value: 0.25, Time: 1.5},
		{Op: sink.OpSet, Value: 0.5, Time: 3},
	}, rec.Instructions())

	_, _, looping := tl.Loop()
	assert.True(t, looping, "projection leaves the loop in place")
}

func TestTimeline_Detach_StopsProjection(t *testing.T) {
	rec := sink.NewRecorder()
	tl := New(WithSink(rec))
	tl.Detach()

	require.NoError(t, tl.SetValueAtTime(1, 0))
	assert.Equal(t, 0, rec.Len())
}

func TestTimeline_NoSink_IsPure(t *testing.T) {
	tl := New()
	require.NoError(t, tl.SetValueAtTime(0, 0))
	require.NoError(t, tl.LinearRampToValueAtTime(1, 1))
	require.NoError(t, tl.CancelAndHoldAtTime(0.5))
	assert.Equal(t, 2, tl.Len())
}
