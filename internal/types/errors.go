package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for WorldSmith engine errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Generation and retrieval error codes
const (
	GENERATE_FAILED   ErrorCode = "GENERATE_FAILED"
	EMBED_FAILED      ErrorCode = "EMBED_FAILED"
	RETRIEVAL_FAILED  ErrorCode = "RETRIEVAL_FAILED"
	STORE_FAILED      ErrorCode = "STORE_FAILED"
	STORE_UNAVAILABLE ErrorCode = "STORE_UNAVAILABLE"
	SECTION_NOT_FOUND ErrorCode = "SECTION_NOT_FOUND"
)

// Engine error codes
const (
	BUDGET_EXCEEDED         ErrorCode = "BUDGET_EXCEEDED"
	NODE_EXECUTION_FAILED   ErrorCode = "NODE_EXECUTION_FAILED"
	NODE_NOT_FOUND          ErrorCode = "NODE_NOT_FOUND"
	RUN_CANCELLED           ErrorCode = "RUN_CANCELLED"
	PATH_TRAVERSAL_REJECTED ErrorCode = "PATH_TRAVERSAL_REJECTED"
	VAULT_WRITE_FAILED      ErrorCode = "VAULT_WRITE_FAILED"
	REGISTRY_FAILED         ErrorCode = "REGISTRY_FAILED"
)

// Error represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *Error) Is(target error) bool {
	var wsErr *Error
	if errors.As(target, &wsErr) {
		return e.Code == wsErr.Code
	}
	return false
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable Error with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapRetryableError creates a new retryable Error that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a retryable Error.
func IsRetryable(err error) bool {
	var wsErr *Error
	if errors.As(err, &wsErr) {
		return wsErr.Retryable
	}
	return false
}

// CodeOf returns the error code of err if it is a structured Error, or empty.
func CodeOf(err error) ErrorCode {
	var wsErr *Error
	if errors.As(err, &wsErr) {
		return wsErr.Code
	}
	return ""
}
