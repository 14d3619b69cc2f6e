package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ParseError is a scenario decoding failure with a source position.
type ParseError struct {
	Message string
	Pos     token.Pos
}

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// ParseCUE decodes a CUE scenario without validating it. The file must
// evaluate to a concrete struct with the same fields as the YAML form.
//
// CUE lets scenario files share definitions and compute times:
//
//	#bar: 60.0 / 120 * 4
//	name: "two_bars"
//	description: "callback every bar"
//	dispatch: callbacks: [{name: "bar", time: 0, every: #bar, repeat: 1}]
func ParseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, formatCUEError(err)
	}
	return &scenario, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors; report the first
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("failed to parse CUE: %w", err)
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ParseError{
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return fmt.Errorf("failed to parse CUE: %w", err)
}
