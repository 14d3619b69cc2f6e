package automation

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes automation errors.
type ErrorCode string

const (
	// CodeContractViolation indicates the caller broke an operation's contract.
	CodeContractViolation ErrorCode = "CONTRACT_VIOLATION"

	// CodeInvalidState indicates the timeline cannot perform the operation in
	// its current configuration. Callers may recover, e.g. by skipping a hold.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeInvariantViolation indicates an internal defect.
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

var (
	// ErrRampWithoutAnchor is returned by CancelAndHoldAtTime when the event
	// after the hold time is a ramp with no event before it to ramp from.
	ErrRampWithoutAnchor = errors.New("linear ramp without a preceding event")

	// ErrNoAnchor is returned by ValueAtTime for times before the first event.
	ErrNoAnchor = errors.New("no event at or before time")

	// ErrUnknownKind is returned when an event has an unrecognized Kind.
	ErrUnknownKind = errors.New("unsupported event kind")
)

// Error is an automation failure with a category code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the Timeline method that failed.
	Op string

	// Message is a human-readable description.
	Message string

	// Err is an optional sentinel for errors.Is matching.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsContractViolation reports whether err is a contract violation.
// Uses errors.As to handle wrapped errors.
func IsContractViolation(err error) bool {
	return hasCode(err, CodeContractViolation)
}

// IsInvalidState reports whether err is an invalid automation state error.
func IsInvalidState(err error) bool {
	return hasCode(err, CodeInvalidState)
}

// IsInvariantViolation reports whether err is an internal invariant violation.
func IsInvariantViolation(err error) bool {
	return hasCode(err, CodeInvariantViolation)
}

func hasCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func contractError(op, format string, args ...any) *Error {
	return &Error{
		Code:    CodeContractViolation,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

func invariantError(op string, sentinel error, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvariantViolation,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}
