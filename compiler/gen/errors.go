package gen

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases.
var (
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("prax: missing configuration")
	// ErrGenerationFailed indicates a code generation failure.
	ErrGenerationFailed = errors.New("prax: code generation failed")
)

// ConfigError reports an invalid generator option.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("prax: generator option %s=%v: %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("prax: generator option %s: %s", e.Option, e.Message)
}

// Is matches ErrMissingConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message}
}

// GenerationError reports a failure to render or write one file.
type GenerationError struct {
	// Type is the model, view, enum or composite type being generated.
	Type    string
	File    string
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	msg := "prax: generate"
	switch {
	case e.Type != "" && e.File != "":
		msg += fmt.Sprintf(" %s (%s)", e.Type, e.File)
	case e.Type != "":
		msg += " " + e.Type
	case e.File != "":
		msg += " " + e.File
	}
	for _, part := range []string{e.Message, errString(e.Cause)} {
		if part != "" {
			msg += ": " + part
		}
	}
	return msg
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// Is matches ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(typeName, file, message string, cause error) *GenerationError {
	return &GenerationError{Type: typeName, File: file, Message: message, Cause: cause}
}

// IsConfigError reports whether err holds a *ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsGenerationError reports whether err holds a *GenerationError.
func IsGenerationError(err error) bool {
	var e *GenerationError
	return errors.As(err, &e)
}
