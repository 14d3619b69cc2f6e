package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/lookahead/internal/automation"
	"github.com/roach88/lookahead/internal/sink"
)

// DefaultTolerance is the numeric tolerance when an assertion sets none.
const DefaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The registry provides the timelines for value_at and event_count.
func EvaluateAssertions(result *Result, assertions []Assertion, registry *automation.Registry) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertInstructionCount:
			err = assertInstructionCount(&result.Trace, a)
		case AssertInstruction:
			err = assertInstruction(&result.Trace, a)
		case AssertValueAt:
			err = assertValueAt(registry, a)
		case AssertEventCount:
			err = assertEventCount(registry, a)
		case AssertFireOrder:
			err = assertFireOrder(result.Trace.Firings, a)
		case AssertFireCount:
			err = assertFireCount(result.Trace.Firings, a)
		case AssertError:
			err = assertOpError(result.Trace.OpErrors, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

func tolerance(a Assertion) float64 {
	if a.Tolerance > 0 {
		return a.Tolerance
	}
	return DefaultTolerance
}

func near(want, got, tol float64) bool {
	return math.Abs(want-got) <= tol
}

func assertInstructionCount(trace *Trace, a Assertion) error {
	r, ok := trace.Render(a.Render)
	if !ok {
		return &AssertionError{
			Type:     AssertInstructionCount,
			Expected: fmt.Sprintf("render %q", a.Render),
			Actual:   "render not in trace",
		}
	}
	if len(r.Instructions) != a.Count {
		return &AssertionError{
			Type:     AssertInstructionCount,
			Expected: fmt.Sprintf("%d instructions in %s", a.Count, a.Render),
			Actual:   fmt.Sprintf("%d instructions: %s", len(r.Instructions), formatInstructions(r.Instructions)),
		}
	}
	return nil
}

func assertInstruction(trace *Trace, a Assertion) error {
	r, ok := trace.Render(a.Render)
	if !ok {
		return &AssertionError{
			Type:     AssertInstruction,
			Expected: fmt.Sprintf("render %q", a.Render),
			Actual:   "render not in trace",
		}
	}
	if a.Index < 0 || a.Index >= len(r.Instructions) {
		return &AssertionError{
			Type:     AssertInstruction,
			Expected: fmt.Sprintf("instruction %d in %s", a.Index, a.Render),
			Actual:   fmt.Sprintf("%d instructions: %s", len(r.Instructions), formatInstructions(r.Instructions)),
		}
	}

	got := r.Instructions[a.Index]
	tol := tolerance(a)
	mismatch := (a.Op != "" && sink.Op(a.Op) != got.Op) ||
		(a.Value != nil && !near(*a.Value, got.Value, tol)) ||
		(a.Time != nil && !near(*a.Time, got.Time, tol))
	if mismatch {
		return &AssertionError{
			Type:     AssertInstruction,
			Expected: fmt.Sprintf("%s[%d] = %s", a.Render, a.Index, describeExpected(a)),
			Actual:   fmt.Sprintf("%s[%d] = %s", a.Render, a.Index, got),
		}
	}
	return nil
}

func describeExpected(a Assertion) string {
	parts := []string{}
	if a.Op != "" {
		parts = append(parts, a.Op)
	}
	if a.Value != nil {
		parts = append(parts, fmt.Sprintf("value %v", *a.Value))
	}
	if a.Time != nil {
		parts = append(parts, fmt.Sprintf("@%v", *a.Time))
	}
	return strings.Join(parts, " ")
}

func assertValueAt(registry *automation.Registry, a Assertion) error {
	tl, ok := registry.Get(a.Timeline)
	if !ok {
		return fmt.Errorf("value_at: unknown timeline %q", a.Timeline)
	}
	got, err := tl.ValueAtTime(a.At)
	if err != nil {
		return &AssertionError{
			Type:     AssertValueAt,
			Expected: fmt.Sprintf("%s at %v = %v", a.Timeline, a.At, *a.Value),
			Actual:   fmt.Sprintf("error: %v", err),
		}
	}
	if !near(*a.Value, got, tolerance(a)) {
		return &AssertionError{
			Type:     AssertValueAt,
			Expected: fmt.Sprintf("%s at %v = %v", a.Timeline, a.At, *a.Value),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertEventCount(registry *automation.Registry, a Assertion) error {
	tl, ok := registry.Get(a.Timeline)
	if !ok {
		return fmt.Errorf("event_count: unknown timeline %q", a.Timeline)
	}
	if tl.Len() != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events in %s", a.Count, a.Timeline),
			Actual:   fmt.Sprintf("%d events", tl.Len()),
		}
	}
	return nil
}

// assertFireOrder checks the firing sequence restricted to the listed names.
func assertFireOrder(firings []Firing, a Assertion) error {
	var got []string
	for _, f := range firings {
		if slices.Contains(a.Names, f.Name) {
			got = append(got, f.Name)
		}
	}
	if !slices.Equal(got, a.Names) {
		return &AssertionError{
			Type:     AssertFireOrder,
			Expected: fmt.Sprintf("%v", a.Names),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertFireCount(firings []Firing, a Assertion) error {
	count := 0
	for _, f := range firings {
		if f.Name == a.Name {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertFireCount,
			Expected: fmt.Sprintf("%d firings of %s", a.Count, a.Name),
			Actual:   fmt.Sprintf("%d firings", count),
		}
	}
	return nil
}

func assertOpError(opErrors []OpError, a Assertion) error {
	name := automation.NormalizeName(a.Timeline)
	for _, oe := range opErrors {
		if oe.Timeline != name || oe.Index != a.Index {
			continue
		}
		if oe.Code != a.Code {
			return &AssertionError{
				Type:     AssertError,
				Expected: fmt.Sprintf("%s op[%d] fails with %s", name, a.Index, a.Code),
				Actual:   fmt.Sprintf("failed with %s: %s", oe.Code, oe.Message),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("%s op[%d] fails with %s", name, a.Index, a.Code),
		Actual:   "op succeeded",
	}
}

func formatInstructions(instructions []sink.Instruction) string {
	parts := make([]string, len(instructions))
	for i, in := range instructions {
		parts[i] = in.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
