package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/lookahead/internal/harness"
)

// goldenDirName is skipped when searching for scenarios.
const goldenDirName = "golden"

// LoadError is a scenario loading failure with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// findScenarioFiles returns the scenario files under path in lexical order.
// A file path is returned as-is when it has a scenario extension. filter is
// a glob matched against the file name without its extension.
func findScenarioFiles(path string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !harness.IsScenarioFile(path) {
			return nil, fmt.Errorf("not a scenario file: %s", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && d.Name() == goldenDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !harness.IsScenarioFile(p) || !matchesFilter(p, filter) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchesFilter(path, filter string) bool {
	if filter == "" {
		return true
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	matched, _ := filepath.Match(filter, name) // pattern checked up front
	return matched
}

// loadScenario loads one scenario, classifying failures for output.
func loadScenario(path string) (*harness.Scenario, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario not found: %s", path)}
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, harness.ErrInvalidScenario) {
			code = ErrCodeInvalidScenario
		}
		return nil, &LoadError{Code: code, Message: fmt.Sprintf("failed to load %s", path), Err: err}
	}
	return scenario, nil
}

// loadErrorCode returns the CLI code for a loadScenario error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
