package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const rampUpYAML = `name: ramp_up
description: "Linear ramp from silence"
timelines:
  - name: gain
    ops:
      - {op: set, value: 0, time: 0}
      - {op: ramp, value: 1, time: 2}
renders:
  - {timeline: gain, duration: 2}
assertions:
  - {type: instruction_count, render: gain, count: 2}
  - {type: value_at, timeline: gain, at: 1, value: 0.5}
`

const rampUpGolden = `scenario ramp_up
render gain timeline=gain
  set 0 @0
  ramp 1 @2
`

const wrongCountYAML = `name: wrong_count
description: "Expects one instruction too many"
timelines:
  - name: gain
    ops:
      - {op: set, value: 0, time: 0}
      - {op: ramp, value: 1, time: 2}
renders:
  - {timeline: gain, duration: 2}
assertions:
  - {type: instruction_count, render: gain, count: 3}
`

const ticksYAML = `name: ticks
description: "Two coarse callbacks"
dispatch:
  callbacks:
    - {name: first, time: 0.5}
    - {name: second, time: 1}
assertions:
  - {type: fire_order, names: [first, second]}
`

const missingDescriptionYAML = `name: broken
timelines:
  - name: gain
`

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// newTestCobra returns a bare command for calling run functions directly.
func newTestCobra() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, buf
}

// jsonResponse mirrors CLIResponse with a typed payload.
type jsonResponse[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
	RunID  string    `json:"run_id"`
}

func decodeResponse[T any](t *testing.T, out string) jsonResponse[T] {
	t.Helper()

	var resp jsonResponse[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}
