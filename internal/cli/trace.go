package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lookahead/internal/harness"
	"github.com/roach88/lookahead/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Scenario string // optional - filter the run list
	Delete   bool
}

// TraceResult is a stored run with its trace.
type TraceResult struct {
	Run   store.Run      `json:"run"`
	Trace *harness.Trace `json:"trace"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect runs stored by render, simulate and test",
		Long: `List the runs stored in a database, or show one run's trace.

Without a run id every stored run is listed in the order it was written.
With a run id the run's renders, firings and op errors are printed in the
golden file format.

Examples:
  lookahead trace --db runs.db
  lookahead trace --db runs.db --scenario fade_interruption
  lookahead trace --db runs.db 01890a5d-ac96-774b-bcce-b302099a8057
  lookahead trace --db runs.db 01890a5d-ac96-774b-bcce-b302099a8057 --delete`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runTrace(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list only runs of this scenario")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the run instead of showing it")

	return cmd
}

func runTrace(opts *TraceOptions, id string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Delete && id == "" {
		msg := "--delete requires a run id"
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	// store.Open would create a missing database
	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		msg := fmt.Sprintf("database not found: %s", opts.Database)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if id == "" {
		runs, err := st.ListRuns(ctx, opts.Scenario)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		writeRunList(formatter.Writer, runs)
		return nil
	}

	run, trace, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Delete {
		if err := st.DeleteRun(ctx, id); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to delete run", err)
		}
		slog.Info("run deleted", "id", id)
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", RunID: id})
		}
		fmt.Fprintf(formatter.Writer, "Deleted run %s (%s)\n", id, run.Scenario)
		return nil
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{
			Status: "ok",
			Data:   TraceResult{Run: run, Trace: trace},
			RunID:  run.ID,
		})
	}
	writeRunDetail(formatter.Writer, run, trace)
	return nil
}

func writeRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	marks := MarksFor(w)
	for _, r := range runs {
		fmt.Fprintf(w, "%4d %-4s %-8s %-24s %s\n", r.Seq, marks.Mark(r.Pass), r.Kind, r.Scenario, r.ID)
	}
}

func writeRunDetail(w io.Writer, run store.Run, trace *harness.Trace) {
	marks := MarksFor(w)
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "Kind: %s  Seq: %d  Result: %s\n", run.Kind, run.Seq, marks.Mark(run.Pass))
	for _, e := range run.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintln(w)
	_, _ = w.Write(trace.Text())
}
