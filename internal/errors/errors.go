// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for all fault conditions
// - Fault classification used by the stream supervisor
// - Error wrapping utilities
// - A validation error collector for configuration checks

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Upstream faults
	ErrTransientRead  = errors.New("transient read fault")
	ErrStreamEnded    = errors.New("stream ended without error")
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	ErrLineTooLong    = errors.New("line exceeds maximum size")

	// Control signals
	ErrParameterSourceChanged = errors.New("parameter source changed")

	// Parameter parsing
	ErrParse = errors.New("parse fault")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Writer errors
	ErrWriterClosed = errors.New("writer is closed")
)

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// ============================================================================
// Fault classification
// ============================================================================

// FaultKind tags the outcome of a stream attempt.
type FaultKind int

const (
	// FaultNone means no error.
	FaultNone FaultKind = iota
	// FaultTransientRead is an interrupted read of the upstream wire. Recovered by reconnecting.
	FaultTransientRead
	// FaultParameterChanged is the parameter source changing on disk. Recovered by reload.
	FaultParameterChanged
	// FaultParse is malformed parameter content. Fatal.
	FaultParse
	// FaultUnclassified is everything else. Fatal.
	FaultUnclassified
)

// String returns a human-readable name for a fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultTransientRead:
		return "transient_read"
	case FaultParameterChanged:
		return "parameter_changed"
	case FaultParse:
		return "parse"
	case FaultUnclassified:
		return "unclassified"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// Recoverable reports whether the supervisor reconnects after this kind.
func (k FaultKind) Recoverable() bool {
	return k == FaultTransientRead || k == FaultParameterChanged
}

// Classify maps an error returned from a stream attempt to its fault kind.
// A parameter change takes precedence over a read fault when both are wrapped.
func Classify(err error) FaultKind {
	switch {
	case err == nil:
		return FaultNone
	case errors.Is(err, ErrParameterSourceChanged):
		return FaultParameterChanged
	case errors.Is(err, ErrParse):
		return FaultParse
	case errors.Is(err, ErrTransientRead):
		return FaultTransientRead
	default:
		return FaultUnclassified
	}
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewTransientRead marks err as an interrupted upstream read.
func NewTransientRead(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrTransientRead)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransientRead, err)
}

// NewParse creates a parse fault for the given parameter source.
func NewParse(source, detail string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %s: %w", source, detail, ErrParse)
	}
	return fmt.Errorf("%s: %s: %w: %w", source, detail, ErrParse, err)
}

// NewUpstreamStatus creates an error for a rejected upstream connection.
func NewUpstreamStatus(code int, body string) error {
	if body == "" {
		return fmt.Errorf("status %d: %w", code, ErrUpstreamStatus)
	}
	return fmt.Errorf("status %d: %s: %w", code, body, ErrUpstreamStatus)
}

// NewLineTooLong creates a fatal fault for a delivered line longer than limit bytes.
func NewLineTooLong(limit int) error {
	return fmt.Errorf("read stream: limit %d bytes: %w", limit, ErrLineTooLong)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
