package utils

import (
	"errors"
	"fmt"
)

// ErrInsufficientData marks an undefined value that sits inside an indicator's warm-up span.
// It means "no signal yet", never a failure.
var ErrInsufficientData = errors.New("insufficient data for indicator warm-up")

// ErrDegenerateInput marks an undefined value past the warm-up span, produced by a zero-range
// bar or a zero denominator.
var ErrDegenerateInput = errors.New("degenerate input")

// ErrNotFound is returned by adapters when a symbol has no candles or no stored report.
var ErrNotFound = errors.New("not found")

// ConfigurationError represents an invalid period, threshold or weight detected at construction.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError for a configuration field.
//
// Parameters:
//   - field: Dotted path of the offending field.
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ConfigurationError.
func NewConfigurationError(field, message string) error {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}

// NewConfigurationErrorf creates a new ConfigurationError with a formatted message.
//
// Parameters:
//   - field: Dotted path of the offending field.
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ConfigurationError.
func NewConfigurationErrorf(field, format string, args ...interface{}) error {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsConfigurationError reports whether err, or any error it wraps, is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// RequirePositive returns a ConfigurationError when value is not strictly positive.
func RequirePositive(field string, value int) error {
	if value <= 0 {
		return NewConfigurationErrorf(field, "must be > 0, got %d", value)
	}
	return nil
}
