package prax

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for the compilation pipeline.
var (
	// ErrSyntax is returned when the schema source does not match the grammar.
	ErrSyntax = errors.New("prax: syntax error")

	// ErrValidation is returned when a parsed schema violates an invariant.
	ErrValidation = errors.New("prax: validation failed")

	// ErrUnsupported is returned when the selected dialect cannot express
	// an otherwise legal operation.
	ErrUnsupported = errors.New("prax: unsupported")

	// ErrInvalidInput is returned when a builder is finalized without
	// a required argument.
	ErrInvalidInput = errors.New("prax: invalid input")
)

// SyntaxError represents a parse failure at a byte offset of the source.
type SyntaxError struct {
	Offset  int
	Length  int
	Message string
}

// Error returns the error string.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("prax: syntax error at offset %d: %s", e.Offset, e.Message)
}

// Is reports whether the target error matches SyntaxError.
func (e *SyntaxError) Is(err error) bool {
	return err == ErrSyntax
}

// NewSyntaxError returns a new SyntaxError.
func NewSyntaxError(offset, length int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Offset: offset, Length: length, Message: fmt.Sprintf(format, args...)}
}

// IsSyntaxError returns true if the error is a SyntaxError.
func IsSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	var e *SyntaxError
	return errors.As(err, &e)
}

// ValidationError represents a single schema invariant violation.
type ValidationError struct {
	Entity  string // Model, enum, policy or group name
	Field   string // Field or attribute name (if applicable)
	Message string
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("prax: ")
	if e.Entity != "" {
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Is reports whether the target error matches ValidationError.
func (e *ValidationError) Is(err error) bool {
	return err == ErrValidation
}

// NewValidationError returns a new ValidationError.
func NewValidationError(entity, field, format string, args ...any) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects every violation found in one validation pass.
type ValidationErrors []*ValidationError

// Error returns the error string.
func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "prax: no validation errors"
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "prax: %d validation errors:", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Is reports whether the target error matches ValidationErrors.
func (e ValidationErrors) Is(err error) bool {
	return err == ErrValidation
}

// Unwrap returns the collected errors.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i := range e {
		errs[i] = e[i]
	}
	return errs
}

// IsValidationError returns true if the error is a ValidationError
// or a ValidationErrors list.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrValidation)
}

// UnsupportedError is returned when a dialect cannot express an operation.
type UnsupportedError struct {
	Dialect string
	Feature string
	Reason  string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("prax: %s is unsupported on %s: %s", e.Feature, e.Dialect, e.Reason)
	}
	return fmt.Sprintf("prax: %s is unsupported on %s", e.Feature, e.Dialect)
}

// Is reports whether the target error matches UnsupportedError.
func (e *UnsupportedError) Is(err error) bool {
	return err == ErrUnsupported
}

// NewUnsupportedError returns a new UnsupportedError.
func NewUnsupportedError(dialect, feature, reason string) *UnsupportedError {
	return &UnsupportedError{Dialect: dialect, Feature: feature, Reason: reason}
}

// IsUnsupported returns true if the error is an UnsupportedError.
func IsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnsupported)
}

// InvalidInputError is returned by builders missing a required argument.
type InvalidInputError struct {
	Builder string // Builder name (e.g., "upsert", "trigger")
	Field   string // Missing or invalid argument
	Message string
}

// Error returns the error string.
func (e *InvalidInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("prax: %s: invalid %s: %s", e.Builder, e.Field, e.Message)
	}
	return fmt.Sprintf("prax: %s: %s", e.Builder, e.Message)
}

// Is reports whether the target error matches InvalidInputError.
func (e *InvalidInputError) Is(err error) bool {
	return err == ErrInvalidInput
}

// NewInvalidInputError returns a new InvalidInputError.
func NewInvalidInputError(builder, field, message string) *InvalidInputError {
	return &InvalidInputError{Builder: builder, Field: field, Message: message}
}

// IsInvalidInput returns true if the error is an InvalidInputError.
func IsInvalidInput(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidInput)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "prax: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("prax: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
