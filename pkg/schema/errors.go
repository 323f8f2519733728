package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeConfig            = "CONFIG_ERROR"
	ErrCodeDependency        = "DEPENDENCY_ERROR"
	ErrCodeNoCandidate       = "NO_CANDIDATE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnsupportedField  = "UNSUPPORTED_FIELD"
	ErrCodeUnsupportedMethod = "UNSUPPORTED_METHOD"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeTimeout           = "TIMEOUT_ERROR"
	ErrCodeRetryExhausted    = "RETRY_EXHAUSTED"
	ErrCodeCancelled         = "CANCELLED"
)

// ErrorCategory groups error codes into the failure classes an action can report.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryDependency    ErrorCategory = "dependency"
	CategoryNoCandidate   ErrorCategory = "no_candidate"
)

// TicketflowError is the structured error type returned by handlers, the store and the engine.
type TicketflowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Action  string         `json:"action,omitempty"`
	Cause   error          `json:"-"`
}

func (e *TicketflowError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("[%s] action %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *TicketflowError) Unwrap() error {
	return e.Cause
}

// Category maps the error code onto its failure class.
func (e *TicketflowError) Category() ErrorCategory {
	switch e.Code {
	case ErrCodeConfig, ErrCodeUnsupportedField, ErrCodeUnsupportedMethod, ErrCodeNotFound:
		return CategoryConfiguration
	case ErrCodeNoCandidate:
		return CategoryNoCandidate
	default:
		return CategoryDependency
	}
}

// NewError creates a new TicketflowError.
func NewError(code, message string) *TicketflowError {
	return &TicketflowError{Code: code, Message: message}
}

// NewErrorf creates a new TicketflowError with a formatted message.
func NewErrorf(code, format string, args ...any) *TicketflowError {
	return &TicketflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithAction attaches the action name to the error.
func (e *TicketflowError) WithAction(name string) *TicketflowError {
	e.Action = name
	return e
}

// WithCause attaches an underlying cause.
func (e *TicketflowError) WithCause(err error) *TicketflowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *TicketflowError) WithDetails(details map[string]any) *TicketflowError {
	e.Details = details
	return e
}

// CategoryOf classifies any error. Errors that are not TicketflowErrors are
// treated as dependency failures.
func CategoryOf(err error) ErrorCategory {
	var tfErr *TicketflowError
	if errors.As(err, &tfErr) {
		return tfErr.Category()
	}
	return CategoryDependency
}

// IsCode reports whether err is a TicketflowError carrying the given code.
func IsCode(err error, code string) bool {
	var tfErr *TicketflowError
	return errors.As(err, &tfErr) && tfErr.Code == code
}
