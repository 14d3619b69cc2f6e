package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookahead/internal/sink"
)

func sampleTrace() *Trace {
	return &Trace{
		Scenario: "sample",
		Renders: []RenderTrace{{
			Label:    "gain",
			Timeline: "gain",
			Instructions: []sink.Instruction{
				{Op: sink.OpSet, Value: 0.5, Time: 0},
				{Op: sink.OpRamp, Value: 1, Time: 2.25},
			},
		}},
		Firings: []Firing{
			{Seq: 1, Name: "bar", Scheduled: 1, At: 0.9},
			{Seq: 2, Name: "flash", Scheduled: 1.5, At: 1.49, Realtime: true},
		},
		OpErrors: []OpError{{Timeline: "gain", Index: 3, Op: OpHold, Code: "INVALID_STATE"}},
	}
}

func TestTrace_Text(t *testing.T) {
	want := `scenario sample
render gain timeline=gain
  set 0.5 @0
  ramp 1 @2.25
firings
  1 bar @1
  2 flash @1.5 realtime
op errors
  gain[3] hold INVALID_STATE
`
	assert.Equal(t, want, string(sampleTrace().Text()))
}

func TestTrace_Text_OmitsEmptySections(t *testing.T) {
	trace := NewResult("quiet").Trace
	assert.Equal(t, "scenario quiet\n", string(trace.Text()))
}

func TestCompareGolden(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	trace := sampleTrace()

	err := CompareGolden(dir, "sample", trace, false)
	require.Error(t, err, "missing golden file")

	require.NoError(t, CompareGolden(dir, "sample", trace, true))
	data, err := os.ReadFile(filepath.Join(dir, "sample.golden"))
	require.NoError(t, err)
	assert.Equal(t, trace.Text(), data)

	require.NoError(t, CompareGolden(dir, "sample", trace, false))

	trace.Firings = trace.Firings[:1]
	err = CompareGolden(dir, "sample", trace, false)
	var mismatch *GoldenMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, string(mismatch.Expected), "flash")
	assert.NotContains(t, string(mismatch.Actual), "flash")
}
