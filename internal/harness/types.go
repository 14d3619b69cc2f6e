package harness

import (
	"github.com/roach88/lookahead/internal/sink"
)

// RenderTrace is the instruction stream captured for one render label.
type RenderTrace struct {
	Label        string             `json:"label"`
	Timeline     string             `json:"timeline"`
	Instructions []sink.Instruction `json:"instructions"`
}

// Firing records one callback invocation.
type Firing struct {
	// Seq is the 1-based firing order across the run.
	Seq int64 `json:"seq"`

	Name string `json:"name"`

	// Scheduled is the time the callback was scheduled for and received.
	Scheduled float64 `json:"scheduled"`

	// At is the virtual clock reading when it fired.
	At float64 `json:"at"`

	Realtime bool `json:"realtime,omitempty"`
}

// OpError records a timeline op that returned an error.
type OpError struct {
	Timeline string `json:"timeline"`
	Index    int    `json:"index"`
	Op       string `json:"op"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Trace is everything a run produced, in order.
type Trace struct {
	Scenario string        `json:"scenario"`
	Renders  []RenderTrace `json:"renders"`
	Firings  []Firing      `json:"firings"`
	OpErrors []OpError     `json:"op_errors,omitempty"`
}

// Render returns the trace for label.
func (t *Trace) Render(label string) (RenderTrace, bool) {
	for _, r := range t.Renders {
		if r.Label == label {
			return r, true
		}
	}
	return RenderTrace{}, false
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held and no op failed unexpectedly.
	Pass bool `json:"pass"`

	Trace Trace `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Pass:   true,
		Trace:  Trace{Scenario: name, Renders: []RenderTrace{}, Firings: []Firing{}},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
