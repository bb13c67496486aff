package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	me, ok := as(err)
	if !ok {
		me = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", me.Message))
	if me.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", me.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", me.Code))
	return sb.String()
}

// JSONError is the wire representation of an error returned by the HTTP API.
type JSONError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// ToJSONError converts any error into its wire representation.
// Plain errors are reported as internal errors.
func ToJSONError(err error) JSONError {
	me, ok := as(err)
	if !ok {
		me = Wrap(ErrCodeInternal, err)
	}
	return JSONError{
		Code:       me.Code,
		Message:    me.Message,
		Category:   string(me.Category),
		Severity:   string(me.Severity),
		Details:    me.Details,
		Suggestion: me.Suggestion,
		Retryable:  me.Retryable,
	}
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(ToJSONError(err))
}

// LogAttrs returns key-value pairs for structured logging.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	me, ok := as(err)
	if !ok {
		return []any{"error", err.Error()}
	}
	attrs := []any{
		"error_code", me.Code,
		"error", me.Message,
		"retryable", me.Retryable,
	}
	if me.Cause != nil {
		attrs = append(attrs, "cause", me.Cause.Error())
	}
	return attrs
}
