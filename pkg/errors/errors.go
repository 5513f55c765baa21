// Package errors provides structured error types for pkgwarden.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages that name the offending path or field
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The taxonomy is intentionally small:
//   - CONFIGURATION_ERROR: invalid root path, missing manifest, empty allow-list
//   - PARSE_ERROR: a required field could not be read
//   - VISIBILITY_MISMATCH: an artifact is missing where the host expects it
//   - SUBPROCESS_FAILURE: a version-control command exited non-zero
//   - UNKNOWN: any unanticipated fault, wrapped with its original message
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "manifest not found: %s", path)
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeParse, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	ErrCodeConfiguration      Code = "CONFIGURATION_ERROR"
	ErrCodeParse              Code = "PARSE_ERROR"
	ErrCodeVisibilityMismatch Code = "VISIBILITY_MISMATCH"
	ErrCodeSubprocess         Code = "SUBPROCESS_FAILURE"
	ErrCodeUnknown            Code = "UNKNOWN"

	// Input validation errors, reported as configuration problems by the CLI.
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or *SubprocessError
// with a matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error carries no code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var se *SubprocessError
	if errors.As(err, &se) {
		return se.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Classify returns err unchanged when it already carries a code and wraps it
// as ErrCodeUnknown otherwise. A nil error stays nil.
func Classify(err error) error {
	if err == nil || GetCode(err) != "" {
		return err
	}
	return Wrap(ErrCodeUnknown, err, "unexpected failure")
}

// SubprocessError reports a command that exited with a non-zero status.
// Stdout and Stderr hold the captured streams verbatim.
type SubprocessError struct {
	Dir      string
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error // set when the process could not be started
}

// Error implements the error interface.
func (e *SubprocessError) Error() string {
	cmd := strings.Join(e.Argv, " ")
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCodeSubprocess, cmd, e.Cause)
	}
	msg := fmt.Sprintf("%s: %s exited with status %d", ErrCodeSubprocess, cmd, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Unwrap returns the start failure, if any.
func (e *SubprocessError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *SubprocessError) Code() Code {
	return ErrCodeSubprocess
}
