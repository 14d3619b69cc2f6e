package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// Text renders the trace in the golden file format:
//
//	scenario loop_wraparound
//	render gain timeline=gain
//	  set 0 @0
//	  ramp 1 @1
//	firings
//	  1 bar @1
//	  2 flash @1.5 realtime
//	op errors
//	  gain[2] hold INVALID_STATE
//
// Firings print their scheduled time only; clock readings depend on the
// simulation step and are left to the JSON form.
func (t *Trace) Text() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario %s\n", t.Scenario)

	for _, r := range t.Renders {
		fmt.Fprintf(&buf, "render %s timeline=%s\n", r.Label, r.Timeline)
		for _, in := range r.Instructions {
			fmt.Fprintf(&buf, "  %s\n", in)
		}
	}

	if len(t.Firings) > 0 {
		buf.WriteString("firings\n")
		for _, f := range t.Firings {
			fmt.Fprintf(&buf, "  %d %s @%s", f.Seq, f.Name, strconv.FormatFloat(f.Scheduled, 'g', -1, 64))
			if f.Realtime {
				buf.WriteString(" realtime")
			}
			buf.WriteByte('\n')
		}
	}

	if len(t.OpErrors) > 0 {
		buf.WriteString("op errors\n")
		for _, oe := range t.OpErrors {
			fmt.Fprintf(&buf, "  %s[%d] %s %s\n", oe.Timeline, oe.Index, oe.Op, oe.Code)
		}
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A trace mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, result.Trace.Text())
}

// GoldenMismatchError reports a trace that differs from its golden file.
type GoldenMismatchError struct {
	Path     string
	Expected []byte
	Actual   []byte
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("trace differs from %s\n--- expected\n%s--- actual\n%s", e.Path, e.Expected, e.Actual)
}

// CompareGolden checks a trace against dir/name.golden outside of tests.
// With update set it rewrites the file instead.
func CompareGolden(dir, name string, trace *Trace, update bool) error {
	path := filepath.Join(dir, name+".golden")
	actual := trace.Text()

	if update {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, actual, 0644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(expected, actual) {
		return &GoldenMismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}
