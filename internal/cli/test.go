package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/lookahead/internal/harness"
	"github.com/roach88/lookahead/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // overrides <scenario dir>/golden
	Database  string

	// IDs allows overriding the run id generator (for testing).
	IDs store.RunIDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	RunID  string   `json:"run_id,omitempty"`
	Golden string   `json:"golden,omitempty"` // "match", "updated", "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// Golden comparison outcomes.
const (
	goldenMatch    = "match"
	goldenUpdated  = "updated"
	goldenMissing  = "missing"
	goldenMismatch = "mismatch"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run scenarios against their assertions and golden traces",
		Long: `Run every scenario under a file or directory.

A scenario passes when its assertions hold, no op fails unexpectedly, and
its trace matches golden/<name>.golden next to the scenario file. A
scenario without a golden file is checked by assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  lookahead test ./scenarios
  lookahead test ./scenarios --filter "fade_*"
  lookahead test ./scenarios --update
  lookahead test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default: golden/ next to each scenario)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist each run to this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		msg := fmt.Sprintf("scenarios not found: %s", path)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	scenarioFiles, err := findScenarioFiles(path, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeScanError, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	marks := MarksFor(formatter.Writer)

	for _, file := range scenarioFiles {
		formatter.VerboseLog("Running %s", file)
		scenResult := runScenario(opts, file, cmd)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			writeScenarioText(formatter.Writer, marks, scenResult)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter.Writer, marks, result)
}

// runScenario executes a single scenario file and returns the result.
func runScenario(opts *TestOptions, file string, cmd *cobra.Command) ScenarioResult {
	scenario, err := loadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			File:   file,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	sr := ScenarioResult{Name: scenario.Name, File: file}

	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass = result.Pass
	sr.Errors = result.Errors

	dir := opts.GoldenDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(file), goldenDirName)
	}
	sr.Golden, err = checkGolden(dir, scenario.Name, &result.Trace, opts.Update)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	}

	runID, err := persistRun(cmd.Context(), opts.Database, opts.IDs, store.KindTest, result)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to persist run: %v", err))
	}
	sr.RunID = runID
	return sr
}

// checkGolden compares trace with its golden file. A missing file is not a
// failure unless update is set and the write fails.
func checkGolden(dir, name string, trace *harness.Trace, update bool) (string, error) {
	if !update {
		if _, err := os.Stat(filepath.Join(dir, name+".golden")); errors.Is(err, fs.ErrNotExist) {
			return goldenMissing, nil
		}
	}

	err := harness.CompareGolden(dir, name, trace, update)
	var mismatch *harness.GoldenMismatchError
	switch {
	case err == nil && update:
		return goldenUpdated, nil
	case err == nil:
		return goldenMatch, nil
	case errors.As(err, &mismatch):
		return goldenMismatch, fmt.Errorf("trace does not match %s (run with --update to regenerate)", mismatch.Path)
	default:
		return "", err
	}
}

func writeScenarioText(w io.Writer, marks Marks, sr ScenarioResult) {
	line := fmt.Sprintf("%s %s", marks.Mark(sr.Pass), sr.Name)
	if sr.Golden == goldenUpdated {
		line += " (golden updated)"
	}
	fmt.Fprintln(w, line)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.JSON(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(w io.Writer, marks Marks, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintf(w, "%s All scenarios passed\n", marks.Pass)
	return nil
}
