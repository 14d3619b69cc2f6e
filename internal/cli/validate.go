package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lookahead/internal/harness"
)

// ValidationError is one scenario that failed to load or validate.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario|dir>...",
		Short: "Validate scenario files without running them",
		Long: `Decode and validate scenario files without running them.

Reports unknown fields, CUE errors with their positions, and semantic
problems such as renders of undeclared timelines or envelopes with
fewer than two points.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, "")
		if err != nil {
			return outputValidateError(formatter, ErrCodeScanError, err.Error())
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return outputValidateError(formatter, ErrCodeNoFiles, "no scenario files found")
	}

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		if _, err := loadScenario(file); err != nil {
			result.Errors = append(result.Errors, toValidationError(file, err))
		}
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// toValidationError converts a load failure, keeping the CUE position when
// there is one.
func toValidationError(file string, err error) ValidationError {
	ve := ValidationError{
		File:    file,
		Code:    loadErrorCode(err),
		Message: err.Error(),
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Err != nil {
		ve.Message = loadErr.Err.Error()
	}

	var parseErr *harness.ParseError
	if errors.As(err, &parseErr) {
		ve.Message = parseErr.Message
		if parseErr.Pos.IsValid() {
			ve.Line = parseErr.Pos.Line()
			ve.Column = parseErr.Pos.Column()
		}
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	marks := MarksFor(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "%s %d scenario(s) valid\n", marks.Pass, result.Files)
	return nil
}

// outputValidateError outputs a command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every invalid scenario.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.Format == "json" {
		first := result.Errors[0]
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
		return exitErr
	}

	marks := MarksFor(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", marks.Fail)
	fmt.Fprintln(formatter.Writer)

	for _, ve := range result.Errors {
		if ve.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", ve.File, ve.Line, ve.Column)
		} else {
			fmt.Fprintln(formatter.Writer, ve.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", ve.Code, ve.Message)
	}
	return exitErr
}
