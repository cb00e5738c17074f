package errors

import (
	"fmt"
)

// BrewError is the structured error type for the brewindex engine.
// It provides rich context for error handling, logging, and user presentation.
type BrewError struct {
	// Code is the unique error code (e.g., "ERR_301_STORE_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Validation, Store, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *BrewError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BrewError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with BrewError.
func (e *BrewError) Is(target error) bool {
	if t, ok := target.(*BrewError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *BrewError) WithDetail(key, value string) *BrewError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *BrewError) WithSuggestion(suggestion string) *BrewError {
	e.Suggestion = suggestion
	return e
}

// New creates a new BrewError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *BrewError {
	return &BrewError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a BrewError from an existing error.
// The error's message becomes the BrewError message.
func Wrap(code string, err error) *BrewError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
// Config errors degrade to defaults; they never abort a run.
func ConfigError(message string, cause error) *BrewError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a text quality gate error.
// Validation errors skip the text in question; they are never fatal.
func ValidationError(message string, cause error) *BrewError {
	return New(ErrCodeValidationOther, message, cause)
}

// StoreError creates a vector store communication error.
// Transport-level store errors are retryable.
func StoreError(message string, cause error) *BrewError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// ProcessingError creates a file-scoped processing error.
func ProcessingError(message string, cause error) *BrewError {
	return New(ErrCodeChunkingFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *BrewError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a BrewError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BrewError); ok {
		return be.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BrewError); ok {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a BrewError.
// Returns empty string if not a BrewError.
func GetCode(err error) string {
	if be, ok := err.(*BrewError); ok {
		return be.Code
	}
	return ""
}

// GetCategory extracts the category from a BrewError.
// Returns empty string if not a BrewError.
func GetCategory(err error) Category {
	if be, ok := err.(*BrewError); ok {
		return be.Category
	}
	return ""
}
