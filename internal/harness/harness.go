package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/lookahead/internal/automation"
	"github.com/roach88/lookahead/internal/clock"
	"github.com/roach88/lookahead/internal/sink"
)

// Harness is the state of one scenario run: a virtual clock, the named
// timelines and the result being built.
type Harness struct {
	scenario *Scenario
	clock    *clock.Manual
	registry *automation.Registry
	logger   *slog.Logger
	result   *Result
	firings  clock.Sequence
	renders  map[string]int // label -> index in result.Trace.Renders
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh clock and registry, so results are reproducible.
// Execution order:
//  1. Build timelines and apply their ops
//  2. Materialize the static renders
//  3. Simulate the dispatch block on the virtual clock
//  4. Evaluate assertions
//
// An error is returned only when the scenario cannot be set up. Assertion
// failures and unexpected op errors are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	h := newHarness(scenario)
	if err := h.buildTimelines(); err != nil {
		return nil, fmt.Errorf("failed to build timelines: %w", err)
	}
	h.renderStatic()
	if scenario.Dispatch != nil {
		if err := h.dispatch(); err != nil {
			return nil, fmt.Errorf("failed to simulate dispatch: %w", err)
		}
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, h.registry) {
		h.result.AddError(msg)
	}
	for _, oe := range h.result.Trace.OpErrors {
		if !expectedOpError(oe, scenario.Assertions) {
			h.result.AddError(fmt.Sprintf("timeline %s op[%d] %s failed unexpectedly: %s",
				oe.Timeline, oe.Index, oe.Op, oe.Message))
		}
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", h.result.Pass,
		"renders", len(h.result.Trace.Renders),
		"firings", len(h.result.Trace.Firings),
	)
	return h.result, nil
}

// BuildTimelines applies a scenario's timeline ops without rendering or
// dispatching, for callers that inspect the timelines directly. Ops that
// failed are returned alongside the registry.
func BuildTimelines(scenario *Scenario) (*automation.Registry, []OpError, error) {
	h := newHarness(scenario)
	if err := h.buildTimelines(); err != nil {
		return nil, nil, fmt.Errorf("failed to build timelines: %w", err)
	}
	return h.registry, h.result.Trace.OpErrors, nil
}

func newHarness(scenario *Scenario) *Harness {
	start := 0.0
	if scenario.Dispatch != nil {
		start = scenario.Dispatch.Start
	}
	return &Harness{
		scenario: scenario,
		clock:    clock.NewManual(start),
		registry: automation.NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // suppress logs in runs
		result:   NewResult(scenario.Name),
		renders:  make(map[string]int),
	}
}

// buildTimelines registers every timeline and applies its ops in order.
// Failing ops are recorded, not fatal: later ops still run.
func (h *Harness) buildTimelines() error {
	for _, spec := range h.scenario.Timelines {
		tl, err := h.registry.Create(spec.Name,
			automation.WithBaseValue(spec.Base),
			automation.WithClock(h.clock),
		)
		if err != nil {
			return err
		}
		if spec.Loop != nil {
			if err := tl.SetLoop(spec.Loop.Start, spec.Loop.End); err != nil {
				return fmt.Errorf("timeline %q: %w", spec.Name, err)
			}
		}

		name := automation.NormalizeName(spec.Name)
		for i, op := range spec.Ops {
			if err := applyOp(tl, op); err != nil {
				h.result.Trace.OpErrors = append(h.result.Trace.OpErrors, OpError{
					Timeline: name,
					Index:    i,
					Op:       op.Op,
					Code:     errorCode(err),
					Message:  err.Error(),
				})
				h.logger.Info("op failed",
					"timeline", name,
					"index", i,
					"op", op.Op,
					"error", err,
				)
			}
		}
	}
	return nil
}

func applyOp(tl *automation.Timeline, op OpSpec) error {
	switch op.Op {
	case OpSet:
		return tl.SetValueAtTime(op.Value, op.Time)
	case OpRamp:
		return tl.LinearRampToValueAtTime(op.Value, op.Time)
	case OpCancel:
		return tl.CancelScheduledValues(op.Time)
	case OpHold:
		return tl.CancelAndHoldAtTime(op.Time)
	case OpEnvelope:
		points := make([]automation.Point, len(op.Points))
		for i, p := range op.Points {
			points[i] = automation.Point{Value: p.Value, Time: p.Time}
		}
		return tl.SetEnvelope(points)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// errorCode maps an automation error to its code string.
func errorCode(err error) string {
	var ae *automation.Error
	if errors.As(err, &ae) {
		return string(ae.Code)
	}
	return "ERROR"
}

func expectedOpError(oe OpError, assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError &&
			automation.NormalizeName(a.Timeline) == oe.Timeline &&
			a.Index == oe.Index &&
			a.Code == oe.Code {
			return true
		}
	}
	return false
}

func (h *Harness) renderStatic() {
	for _, r := range h.scenario.Renders {
		h.addRender(r.Label(), r.Timeline)
		h.materialize(r.Label(), r.Timeline, r.DSP, r.Offset, r.Duration)
	}
}

// addRender creates the trace entry for label.
func (h *Harness) addRender(label, timeline string) {
	h.renders[label] = len(h.result.Trace.Renders)
	h.result.Trace.Renders = append(h.result.Trace.Renders, RenderTrace{
		Label:        label,
		Timeline:     automation.NormalizeName(timeline),
		Instructions: []sink.Instruction{},
	})
}

// materialize renders a window of timeline and appends the instructions to
// the trace entry for label.
func (h *Harness) materialize(label, timeline string, dsp, offset, duration float64) {
	tl, ok := h.registry.Get(timeline)
	if !ok {
		h.result.AddError(fmt.Sprintf("render %s: unknown timeline %q", label, timeline))
		return
	}

	rec := sink.NewRecorder()
	target := sink.Tee{rec, sink.NewLogger(label, h.logger)}
	err := tl.Materialize(target, dsp, offset, duration)

	i := h.renders[label]
	h.result.Trace.Renders[i].Instructions = append(h.result.Trace.Renders[i].Instructions, rec.Instructions()...)
	if err != nil {
		h.result.AddError(fmt.Sprintf("render %s: %v", label, err))
	}
}
