package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeCycleDetected = "CYCLE_DETECTED"
	ErrCodeExpression    = "EXPRESSION_ERROR"
	ErrCodeRender        = "RENDER_ERROR"
	ErrCodeStore         = "STORE_ERROR"
)

// PathmapError is the structured error type returned across package boundaries.
type PathmapError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PathmapError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PathmapError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PathmapError.
func NewError(code, message string) *PathmapError {
	return &PathmapError{Code: code, Message: message}
}

// NewErrorf creates a new PathmapError with a formatted message.
func NewErrorf(code, format string, args ...any) *PathmapError {
	return &PathmapError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches the offending node ID to the error.
func (e *PathmapError) WithNode(nodeID string) *PathmapError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *PathmapError) WithCause(err error) *PathmapError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PathmapError) WithDetails(details map[string]any) *PathmapError {
	e.Details = details
	return e
}

// HasCode reports whether err is, or wraps, a PathmapError with the given code.
func HasCode(err error, code string) bool {
	var pe *PathmapError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == code
}
