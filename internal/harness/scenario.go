package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lookahead/internal/automation"
)

// ErrInvalidScenario wraps Validate failures from LoadScenario.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario describes one deterministic run.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description" json:"description"`

	Timelines  []TimelineSpec `yaml:"timelines,omitempty" json:"timelines,omitempty"`
	Renders    []RenderSpec   `yaml:"renders,omitempty" json:"renders,omitempty"`
	Dispatch   *DispatchSpec  `yaml:"dispatch,omitempty" json:"dispatch,omitempty"`
	Assertions []Assertion    `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// TimelineSpec declares a named timeline and the ops applied to it in order.
type TimelineSpec struct {
	Name string    `yaml:"name" json:"name"`
	Base float64   `yaml:"base,omitempty" json:"base,omitempty"`
	Loop *LoopSpec `yaml:"loop,omitempty" json:"loop,omitempty"`
	Ops  []OpSpec  `yaml:"ops,omitempty" json:"ops,omitempty"`
}

// LoopSpec is a loop region.
type LoopSpec struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

// OpSpec is one timeline mutation.
type OpSpec struct {
	// Op is one of set, ramp, cancel, hold, envelope.
	Op     string      `yaml:"op" json:"op"`
	Value  float64     `yaml:"value,omitempty" json:"value,omitempty"`
	Time   float64     `yaml:"time,omitempty" json:"time,omitempty"`
	Points []PointSpec `yaml:"points,omitempty" json:"points,omitempty"`
}

// PointSpec is one envelope point.
type PointSpec struct {
	Value float64 `yaml:"value" json:"value"`
	Time  float64 `yaml:"time" json:"time"`
}

// RenderSpec materializes a window of a timeline onto a recorder.
type RenderSpec struct {
	// Name labels the render in the trace; defaults to the timeline name.
	Name     string  `yaml:"name,omitempty" json:"name,omitempty"`
	Timeline string  `yaml:"timeline" json:"timeline"`
	DSP      float64 `yaml:"dsp,omitempty" json:"dsp,omitempty"`
	Offset   float64 `yaml:"offset,omitempty" json:"offset,omitempty"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// Label returns the trace label of the render.
func (r RenderSpec) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Timeline
}

// DispatchSpec configures the simulated Dispatcher.
type DispatchSpec struct {
	// LookAhead and FrameInterval default to the scheduler defaults.
	LookAhead     float64 `yaml:"look_ahead,omitempty" json:"look_ahead,omitempty"`
	FrameInterval float64 `yaml:"frame_interval,omitempty" json:"frame_interval,omitempty"`

	// Start is the clock reading when scheduling begins.
	Start float64 `yaml:"start,omitempty" json:"start,omitempty"`

	// Until bounds the simulation; defaults to DefaultUntil.
	Until float64 `yaml:"until,omitempty" json:"until,omitempty"`

	Callbacks []CallbackSpec `yaml:"callbacks" json:"callbacks"`

	// Cancel names callbacks cancelled right after everything is scheduled.
	Cancel []string `yaml:"cancel,omitempty" json:"cancel,omitempty"`
}

// CallbackSpec is one scheduled callback.
type CallbackSpec struct {
	Name     string  `yaml:"name" json:"name"`
	Time     float64 `yaml:"time" json:"time"`
	Realtime bool    `yaml:"realtime,omitempty" json:"realtime,omitempty"`

	// Every reschedules the callback from inside itself, Repeat more times.
	Every  float64 `yaml:"every,omitempty" json:"every,omitempty"`
	Repeat int     `yaml:"repeat,omitempty" json:"repeat,omitempty"`

	// Cancels names callbacks this one cancels when it fires.
	Cancels []string `yaml:"cancels,omitempty" json:"cancels,omitempty"`

	// Render materializes a timeline at the scheduled time on each firing.
	Render *CallbackRender `yaml:"render,omitempty" json:"render,omitempty"`
}

// CallbackRender plays a timeline from Offset, advancing with the schedule:
// the n-th firing (from 0) renders from Offset + n*Every at its scheduled
// time.
type CallbackRender struct {
	Timeline string  `yaml:"timeline" json:"timeline"`
	Offset   float64 `yaml:"offset,omitempty" json:"offset,omitempty"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// Assertion checks the result of a run.
type Assertion struct {
	Type string `yaml:"type" json:"type"`

	// Render is the render label (instruction_count, instruction).
	Render string `yaml:"render,omitempty" json:"render,omitempty"`

	// Timeline names a timeline (value_at, event_count, error).
	Timeline string `yaml:"timeline,omitempty" json:"timeline,omitempty"`

	// Index selects an instruction (instruction) or an op (error).
	Index int `yaml:"index,omitempty" json:"index,omitempty"`

	// Op is the expected instruction op (instruction).
	Op string `yaml:"op,omitempty" json:"op,omitempty"`

	// Value and Time are expected numbers; nil means unchecked.
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Time  *float64 `yaml:"time,omitempty" json:"time,omitempty"`

	// At is the query time (value_at).
	At float64 `yaml:"at,omitempty" json:"at,omitempty"`

	// Count is the expected count (instruction_count, event_count, fire_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Name is a callback name (fire_count).
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Names is the expected firing order (fire_order).
	Names []string `yaml:"names,omitempty" json:"names,omitempty"`

	// Code is the expected error code (error), e.g. INVALID_STATE.
	Code string `yaml:"code,omitempty" json:"code,omitempty"`

	// Tolerance for numeric comparisons; defaults to DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// Op names.
const (
	OpSet      = "set"
	OpRamp     = "ramp"
	OpCancel   = "cancel"
	OpHold     = "hold"
	OpEnvelope = "envelope"
)

// Assertion type constants.
const (
	AssertInstructionCount = "instruction_count"
	AssertInstruction      = "instruction"
	AssertValueAt          = "value_at"
	AssertEventCount       = "event_count"
	AssertFireOrder        = "fire_order"
	AssertFireCount        = "fire_count"
	AssertError            = "error"
)

// LoadScenario reads a scenario file, choosing the decoder by extension.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		scenario, err = ParseCUE(data, path)
	case ".yaml", ".yml":
		scenario, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported scenario extension %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(scenario); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return scenario, nil
}

// ParseYAML decodes a YAML scenario without validating it.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// IsScenarioFile reports whether path has a scenario extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// Validate checks that a scenario is complete and internally consistent.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Timelines) == 0 && s.Dispatch == nil {
		return fmt.Errorf("at least one timeline or a dispatch block is required")
	}

	timelines := make(map[string]bool)
	for i, tl := range s.Timelines {
		name := automation.NormalizeName(tl.Name)
		if name == "" {
			return fmt.Errorf("timelines[%d]: name is required", i)
		}
		if timelines[name] {
			return fmt.Errorf("timelines[%d]: duplicate name %q", i, name)
		}
		timelines[name] = true

		if tl.Loop != nil && tl.Loop.End <= tl.Loop.Start {
			return fmt.Errorf("timelines[%d]: loop end %v must be greater than start %v", i, tl.Loop.End, tl.Loop.Start)
		}
		for j, op := range tl.Ops {
			if err := validateOp(op); err != nil {
				return fmt.Errorf("timelines[%d].ops[%d]: %w", i, j, err)
			}
		}
	}

	hasTimeline := func(name string) bool {
		return timelines[automation.NormalizeName(name)]
	}

	labels := make(map[string]bool)
	for i, r := range s.Renders {
		if !hasTimeline(r.Timeline) {
			return fmt.Errorf("renders[%d]: unknown timeline %q", i, r.Timeline)
		}
		if r.Duration <= 0 {
			return fmt.Errorf("renders[%d]: duration must be positive", i)
		}
		if labels[r.Label()] {
			return fmt.Errorf("renders[%d]: duplicate label %q", i, r.Label())
		}
		labels[r.Label()] = true
	}

	callbacks := make(map[string]bool)
	if d := s.Dispatch; d != nil {
		if len(d.Callbacks) == 0 {
			return fmt.Errorf("dispatch: callbacks list is required and must be non-empty")
		}
		if d.LookAhead < 0 || d.FrameInterval < 0 {
			return fmt.Errorf("dispatch: look_ahead and frame_interval must not be negative")
		}
		if d.Until != 0 && d.Until <= d.Start {
			return fmt.Errorf("dispatch: until %v must be after start %v", d.Until, d.Start)
		}
		for i, cb := range d.Callbacks {
			if cb.Name == "" {
				return fmt.Errorf("dispatch.callbacks[%d]: name is required", i)
			}
			if callbacks[cb.Name] {
				return fmt.Errorf("dispatch.callbacks[%d]: duplicate name %q", i, cb.Name)
			}
			callbacks[cb.Name] = true
			if cb.Every < 0 || cb.Repeat < 0 {
				return fmt.Errorf("dispatch.callbacks[%d]: every and repeat must not be negative", i)
			}
			if cb.Repeat > 0 && cb.Every == 0 {
				return fmt.Errorf("dispatch.callbacks[%d]: repeat needs every", i)
			}
			if cb.Render != nil {
				if !hasTimeline(cb.Render.Timeline) {
					return fmt.Errorf("dispatch.callbacks[%d]: unknown timeline %q", i, cb.Render.Timeline)
				}
				if cb.Render.Duration <= 0 {
					return fmt.Errorf("dispatch.callbacks[%d]: render duration must be positive", i)
				}
				if labels[cb.Name] {
					return fmt.Errorf("dispatch.callbacks[%d]: render label %q already used", i, cb.Name)
				}
				labels[cb.Name] = true
			}
		}
		for i, cb := range d.Callbacks {
			for _, name := range cb.Cancels {
				if !callbacks[name] {
					return fmt.Errorf("dispatch.callbacks[%d]: cancels unknown callback %q", i, name)
				}
			}
		}
		for _, name := range d.Cancel {
			if !callbacks[name] {
				return fmt.Errorf("dispatch.cancel: unknown callback %q", name)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, labels, hasTimeline, callbacks); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateOp(op OpSpec) error {
	switch op.Op {
	case OpSet, OpRamp, OpCancel, OpHold:
		if len(op.Points) > 0 {
			return fmt.Errorf("points are only valid for envelope")
		}
	case OpEnvelope:
		if len(op.Points) == 0 {
			return fmt.Errorf("envelope needs points")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

func validateAssertion(a Assertion, renders map[string]bool, hasTimeline func(string) bool, callbacks map[string]bool) error {
	switch a.Type {
	case AssertInstructionCount, AssertInstruction:
		if !renders[a.Render] {
			return fmt.Errorf("%s: unknown render %q", a.Type, a.Render)
		}
		if a.Type == AssertInstruction && a.Op == "" && a.Value == nil && a.Time == nil {
			return fmt.Errorf("instruction: at least one of op, value or time is required")
		}
	case AssertValueAt:
		if !hasTimeline(a.Timeline) {
			return fmt.Errorf("value_at: unknown timeline %q", a.Timeline)
		}
		if a.Value == nil {
			return fmt.Errorf("value_at: value is required")
		}
	case AssertEventCount:
		if !hasTimeline(a.Timeline) {
			return fmt.Errorf("event_count: unknown timeline %q", a.Timeline)
		}
	case AssertFireOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("fire_order: names list is required")
		}
		for _, n := range a.Names {
			if !callbacks[n] {
				return fmt.Errorf("fire_order: unknown callback %q", n)
			}
		}
	case AssertFireCount:
		if !callbacks[a.Name] {
			return fmt.Errorf("fire_count: unknown callback %q", a.Name)
		}
	case AssertError:
		if !hasTimeline(a.Timeline) {
			return fmt.Errorf("error: unknown timeline %q", a.Timeline)
		}
		if a.Code == "" {
			return fmt.Errorf("error: code is required")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("%s: count must be non-negative", a.Type)
	}
	return nil
}
