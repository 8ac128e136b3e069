package entities

import (
	"fmt"
	"strings"
)

// ErrorDetail provides structured error information for failures raised
// inside the exported call surface.
// Error Types: "handle", "memory", "protocol", "panic", "not_found", "internal"
type ErrorDetail struct {
	// Wrapped contains a wrapped error for error chains.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Details contains additional error context.
	Details map[string]any `json:"details,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Operation names the exported function the failure surfaced in.
	Operation string `json:"operation,omitempty"`

	// Stack contains the stack trace for panic errors.
	Stack []byte `json:"stack,omitempty"`

	// IsNotFound indicates if this was a "not found" error.
	IsNotFound bool `json:"is_not_found,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// Describe renders the full descriptive text delivered to the native side:
// the kind and message, the operation, the wrapped chain and the stack.
func (e *ErrorDetail) Describe() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	kind := e.Type
	if kind == "" {
		kind = "internal"
	}
	fmt.Fprintf(&b, "coral.%s: %s", kind, e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, "\n   in %s", e.Operation)
	}
	// Causes already spelled out in the message are not repeated.
	for w := e.Wrapped; w != nil; w = w.Wrapped {
		if text := w.Error(); !strings.Contains(e.Message, text) {
			fmt.Fprintf(&b, "\n ---> %s", text)
		}
	}
	if len(e.Stack) > 0 {
		b.WriteString("\n")
		b.Write(e.Stack)
	}
	return b.String()
}

// NewErrorDetail creates a new ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetails attaches details and returns the receiver.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

// WithCode attaches a code and returns the receiver.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}

// WithOperation records the exported function and returns the receiver.
func (e *ErrorDetail) WithOperation(op string) *ErrorDetail {
	e.Operation = op
	return e
}
