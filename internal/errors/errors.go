package errors

import (
	"errors"
	"fmt"
)

// MojifyError is the structured error type used across mojify.
// It carries enough context for logging, HTTP status mapping and CLI output.
type MojifyError struct {
	// Code is the unique error code (e.g., "ERR_207_STORE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates the operation can be retried unchanged.
	Retryable bool

	// Suggestion is an actionable hint for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *MojifyError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *MojifyError) Unwrap() error {
	return e.Cause
}

// Is matches another MojifyError by code.
func (e *MojifyError) Is(target error) bool {
	if t, ok := target.(*MojifyError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *MojifyError) WithDetail(key, value string) *MojifyError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable suggestion and returns the error for chaining.
func (e *MojifyError) WithSuggestion(suggestion string) *MojifyError {
	e.Suggestion = suggestion
	return e
}

// New creates a MojifyError. Category, severity and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *MojifyError {
	return &MojifyError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a MojifyError from an existing error, reusing its message.
// Returns nil when err is nil.
func Wrap(code string, err error) *MojifyError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *MojifyError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *MojifyError {
	return New(ErrCodeInvalidInput, message, cause)
}

// StoreUnavailable creates the retryable infrastructure error returned when
// the index or embedding storage cannot be reached.
func StoreUnavailable(message string, cause error) *MojifyError {
	return New(ErrCodeStoreUnavailable, message, cause).
		WithSuggestion("check that the index database is reachable and retry")
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MojifyError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first MojifyError in err's chain.
func as(err error) (*MojifyError, bool) {
	var me *MojifyError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// IsRetryable reports whether any MojifyError in the chain is retryable.
func IsRetryable(err error) bool {
	me, ok := as(err)
	return ok && me.Retryable
}

// IsFatal reports whether the error has fatal severity.
func IsFatal(err error) bool {
	me, ok := as(err)
	return ok && me.Severity == SeverityFatal
}

// GetCode extracts the error code, or "" if err carries none.
func GetCode(err error) string {
	if me, ok := as(err); ok {
		return me.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err carries none.
func GetCategory(err error) Category {
	if me, ok := as(err); ok {
		return me.Category
	}
	return ""
}
