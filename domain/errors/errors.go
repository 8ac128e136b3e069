// Package errors provides domain-specific error types for the bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/coral-dev/coral-go/domain/entities"
)

// ErrNotFound marks a name or object that does not resolve.
// Not-found is an expected outcome and is never reported to the native side.
var ErrNotFound = stdErrors.New("not found")

// IsNotFound reports whether err is a not-found outcome.
func IsNotFound(err error) bool {
	return stdErrors.Is(err, ErrNotFound)
}

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// The message is the full text of err, outer context included; the type,
// code and stack come from the first typed error in the chain. Wrapped
// causes are preserved as a chain. The result is never shared with err.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		detail := *e
		detail.Message = strings.TrimSuffix(err.Error(), e.Error()) + e.Message
		return &detail
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		detail := de.ToErrorDetail()
		detail.Message = err.Error()
		if inner := stdErrors.Unwrap(de); inner != nil && detail.Wrapped == nil {
			detail.Wrapped = ToErrorDetail(inner)
		}
		return detail
	}

	if IsNotFound(err) {
		return &entities.ErrorDetail{Message: err.Error(), Type: "not_found", IsNotFound: true}
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// HandleReason classifies why a handle failed to resolve.
type HandleReason string

const (
	HandleZero    HandleReason = "zero"
	HandleUnknown HandleReason = "unknown"
	HandleStale   HandleReason = "stale"
	HandleClosed  HandleReason = "closed"
)

// HandleError represents a handle that does not name a live object.
type HandleError struct {
	Operation string
	Reason    HandleReason
	Handle    entities.Handle
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("%s %s: %s handle", e.Operation, e.Handle, e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *HandleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "handle",
		Code:    string(e.Reason),
		Details: map[string]any{"handle": uint64(e.Handle)},
	}
}

// MemoryError represents a failed operation on native memory.
type MemoryError struct {
	Err       error
	Operation string // allocate, free, read, write
	Reason    string
	Ptr       uint32
	Size      uint32
}

func (e *MemoryError) Error() string {
	msg := fmt.Sprintf("memory %s at 0x%x (%d bytes): %s", e.Operation, e.Ptr, e.Size, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *MemoryError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *MemoryError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "memory", Code: e.Operation}
}

// LimitError represents an allocation refused by a configured limit.
type LimitError struct {
	Requested int
	Current   int
	Limit     int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("memory allocation failed: requested %d bytes, current %d bytes, limit %d bytes",
		e.Requested, e.Current, e.Limit)
}

// ToErrorDetail implements DetailedError.
func (e *LimitError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "memory", Code: "memory_limit"}
}

// ProtocolError represents a call that violates the boundary contract,
// such as a null output pointer.
type ProtocolError struct {
	Operation string
	Argument  string
	Reason    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: argument %s: %s", e.Operation, e.Argument, e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *ProtocolError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "protocol", Code: e.Argument}
}

// PanicError carries a value recovered from a panic inside an exported call.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ToErrorDetail implements DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "panic", Stack: e.Stack}
}

// SchemaError represents a schema generation error.
type SchemaError struct {
	Err  error
	Type string
}

func (e *SchemaError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("schema error for type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SchemaError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "internal", Code: "schema"}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}
