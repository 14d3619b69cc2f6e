package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lookahead/internal/automation"
	"github.com/roach88/lookahead/internal/export"
	"github.com/roach88/lookahead/internal/harness"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Timeline string
	Out      string
	Rate     int
	From     float64
	To       float64 // zero means the last event time
}

// ExportResult describes a written WAV file.
type ExportResult struct {
	Scenario string  `json:"scenario"`
	Timeline string  `json:"timeline"`
	Path     string  `json:"path"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
	Rate     int     `json:"rate"`
	Samples  int     `json:"samples"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <scenario>",
		Short: "Sample a timeline into a mono 16-bit WAV file",
		Long: `Build the scenario's timelines and sample one of them at a fixed control
rate, writing the values as a mono 16-bit PCM WAV file. Values are clamped
to [-1, 1].

Examples:
  lookahead export scenarios/fade.yaml --timeline gain --out gain.wav
  lookahead export scenarios/fade.yaml --timeline gain --out gain.wav --from 8 --to 14 --rate 200`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Timeline, "timeline", "", "timeline to sample (required)")
	_ = cmd.MarkFlagRequired("timeline")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output WAV path (required)")
	_ = cmd.MarkFlagRequired("out")
	cmd.Flags().IntVar(&opts.Rate, "rate", export.DefaultRate, "samples per second")
	cmd.Flags().Float64Var(&opts.From, "from", 0, "window start in seconds")
	cmd.Flags().Float64Var(&opts.To, "to", 0, "window end in seconds (default: last event)")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
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

	registry, opErrors, err := harness.BuildTimelines(scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeRunFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build timelines", err)
	}
	for _, oe := range opErrors {
		formatter.VerboseLog("op %s[%d] %s failed: %s", oe.Timeline, oe.Index, oe.Op, oe.Message)
	}

	tl, ok := registry.Get(opts.Timeline)
	if !ok {
		msg := fmt.Sprintf("scenario %s has no timeline %q", scenario.Name, opts.Timeline)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	rate := opts.Rate
	if rate <= 0 {
		rate = export.DefaultRate
	}
	w := export.Window{From: opts.From, To: opts.To, Rate: rate}
	if w.To == 0 {
		w.To = defaultWindowEnd(tl, w.From)
	}

	n, err := export.WriteFile(opts.Out, tl, w)
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to export timeline", err)
	}
	slog.Info("timeline exported", "timeline", opts.Timeline, "path", opts.Out, "samples", n)

	result := ExportResult{
		Scenario: scenario.Name,
		Timeline: automation.NormalizeName(opts.Timeline),
		Path:     opts.Out,
		From:     w.From,
		To:       w.To,
		Rate:     rate,
		Samples:  n,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Wrote %d samples of %s [%s, %s) to %s\n",
		n, result.Timeline, formatTime(w.From), formatTime(w.To), opts.Out)
	return nil
}

// defaultWindowEnd is the last event time, or one second past from when
// the timeline ends at or before it.
func defaultWindowEnd(tl *automation.Timeline, from float64) float64 {
	end := from + 1
	if events := tl.Events(); len(events) > 0 {
		if last := events[len(events)-1].Time; last > from {
			end = last
		}
	}
	return end
}
