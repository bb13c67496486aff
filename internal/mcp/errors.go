// Package mcp implements the Model Context Protocol (MCP) server for mojify.
package mcp

import (
	"context"
	"errors"
	"fmt"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// Custom MCP error codes for mojify.
const (
	// ErrCodeIndexUnavailable indicates the index database cannot be read.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeRebuildInProgress indicates a rebuild is already running.
	ErrCodeRebuildInProgress = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var me *mojierrors.MojifyError
	if errors.As(err, &me) {
		return mapMojifyError(me)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapMojifyError(me *mojierrors.MojifyError) *MCPError {
	message := me.Message
	if me.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", me.Message, me.Suggestion)
	}

	switch {
	case me.Code == mojierrors.ErrCodeRebuildInProgress:
		return &MCPError{Code: ErrCodeRebuildInProgress, Message: message}
	case me.Code == mojierrors.ErrCodeStoreUnavailable, me.Code == mojierrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case me.Category == mojierrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case me.Category == mojierrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
