package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/lookahead/internal/harness"
	"github.com/roach88/lookahead/internal/store"
)

// RunOptions holds flags shared by render and simulate.
type RunOptions struct {
	*RootOptions
	Database string

	// IDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs store.RunIDGenerator
}

// RunOutput is the payload of render and simulate.
type RunOutput struct {
	Scenario string                `json:"scenario"`
	Pass     bool                  `json:"pass"`
	RunID    string                `json:"run_id,omitempty"`
	Renders  []harness.RenderTrace `json:"renders,omitempty"`
	Firings  []harness.Firing      `json:"firings,omitempty"`
	OpErrors []harness.OpError     `json:"op_errors,omitempty"`
	Errors   []string              `json:"errors,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <scenario>",
		Short: "Print the automation instructions a scenario renders",
		Long: `Build the scenario's timelines and print the instructions each render
window materializes, in the order a parameter would receive them.

Exit codes:
  0 - Rendered and every assertion held
  1 - An assertion failed or an op failed unexpectedly
  2 - Command error (missing file, invalid scenario, database error)

Examples:
  lookahead render scenarios/fade.yaml
  lookahead render scenarios/fade.yaml --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, store.KindRender, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist the run to this SQLite database")
	return cmd
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario>",
		Short: "Run a scenario's dispatch script on a virtual clock",
		Long: `Schedule the scenario's callbacks on a dispatcher driven by a virtual
clock and print every firing with the time it was scheduled for and the
clock reading when it ran.

Examples:
  lookahead simulate scenarios/bars.cue
  lookahead simulate scenarios/bars.cue --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, store.KindSimulate, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist the run to this SQLite database")
	return cmd
}

func runScenarioCommand(opts *RunOptions, kind, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := loadScenario(path)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if kind == store.KindSimulate && scenario.Dispatch == nil {
		msg := fmt.Sprintf("scenario %s has no dispatch block", scenario.Name)
		_ = formatter.Error(ErrCodeRunFailed, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	slog.Info("running scenario", "scenario", scenario.Name, "kind", kind)
	result, err := harness.Run(scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeRunFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	runID, err := persistRun(cmd.Context(), opts.Database, opts.IDs, kind, result)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to persist run", err)
	}

	out := RunOutput{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		RunID:    runID,
		OpErrors: result.Trace.OpErrors,
		Errors:   result.Errors,
	}
	if kind == store.KindRender {
		out.Renders = result.Trace.Renders
	} else {
		out.Firings = result.Trace.Firings
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out, RunID: runID}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeTestFailed,
				Message: fmt.Sprintf("scenario %s failed", scenario.Name),
				Details: result.Errors,
			}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		writeRunText(formatter.Writer, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// persistRun writes result to the database at path, if any, and returns
// the run id.
func persistRun(ctx context.Context, path string, ids store.RunIDGenerator, kind string, result *harness.Result) (string, error) {
	if path == "" {
		return "", nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ids == nil {
		ids = store.UUIDv7Generator{}
	}

	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	id := ids.Generate()
	if err := st.WriteRun(ctx, id, kind, result); err != nil {
		return "", err
	}
	slog.Info("run stored", "id", id, "db", path)
	return id, nil
}

func writeRunText(w io.Writer, out RunOutput) {
	for _, r := range out.Renders {
		fmt.Fprintf(w, "render %s timeline=%s\n", r.Label, r.Timeline)
		for _, in := range r.Instructions {
			fmt.Fprintf(w, "  %s\n", in)
		}
	}
	for _, f := range out.Firings {
		kind := "coarse"
		if f.Realtime {
			kind = "realtime"
		}
		fmt.Fprintf(w, "%4d %-16s scheduled=%-10s at=%-10s %s\n",
			f.Seq, f.Name, formatTime(f.Scheduled), formatTime(f.At), kind)
	}
	for _, oe := range out.OpErrors {
		fmt.Fprintf(w, "op error %s[%d] %s %s: %s\n", oe.Timeline, oe.Index, oe.Op, oe.Code, oe.Message)
	}

	marks := MarksFor(w)
	fmt.Fprintf(w, "%s %s\n", marks.Mark(out.Pass), out.Scenario)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if out.RunID != "" {
		fmt.Fprintf(w, "run %s\n", out.RunID)
	}
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
