// Package errors defines the failure conditions a conversion can end with.
//
// Every type unwraps to a sentinel so callers can branch with errors.Is
// without caring about the concrete type, and use errors.As when they need
// the path or offset for a diagnostic.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates the input does not exist or is not a regular file
	ErrNotFound = errors.New("not found")
	// ErrEncoding indicates input bytes that are not valid text in the expected encoding
	ErrEncoding = errors.New("encoding error")
	// ErrInvalidInput indicates an invalid option or argument
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported charset or feature
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError reports a missing input.
type NotFoundError struct {
	Path   string // Path that was looked up
	Reason string // Optional detail, e.g. "not a regular file"
	Err    error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("input %s: %s", e.Reason, e.Path)
	}
	return fmt.Sprintf("input file does not exist: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Is makes errors.Is(err, ErrNotFound) hold even when Err carries the
// os-level cause.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// EncodingError reports input that failed UTF-8 decoding.
type EncodingError struct {
	Path     string // File being read; empty for anonymous streams
	Offset   int64  // Byte offset of the first offending byte
	Encoding string // Expected encoding, normally "utf-8"
}

func (e *EncodingError) Error() string {
	enc := e.Encoding
	if enc == "" {
		enc = "utf-8"
	}
	if e.Path != "" {
		return fmt.Sprintf("cannot decode %s as %s: invalid byte at offset %d", e.Path, enc, e.Offset)
	}
	return fmt.Sprintf("cannot decode input as %s: invalid byte at offset %d", enc, e.Offset)
}

func (e *EncodingError) Unwrap() error {
	return ErrEncoding
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature that is unsupported
	Reason  string // Why it's not supported
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// NewNotFound creates a NotFoundError
func NewNotFound(path string) *NotFoundError {
	return &NotFoundError{Path: path}
}

// NewEncoding creates a UTF-8 EncodingError
func NewEncoding(path string, offset int64) *EncodingError {
	return &EncodingError{Path: path, Offset: offset, Encoding: "utf-8"}
}

// NewValidation creates a ValidationError
func NewValidation(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
