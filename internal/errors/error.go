package errors

import "fmt"

// Category represents the type of error.
type Category string

const (
	CategoryStructural Category = "structural"
	CategoryCapacity   Category = "capacity"
	CategoryProtocol   Category = "protocol"
	CategoryTransport  Category = "transport"
	CategoryConfig     Category = "config"
	CategoryInternal   Category = "internal"
)

// PresageError is a structured error with a registered code and category.
//
// Structural errors are programmer errors in the upstream tree producer
// and are never silently recovered. Capacity, transport, and cache
// conditions are absorbed by their owning subsystems; they surface here
// only when a caller explicitly asks for the cause.
type PresageError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (structural, capacity, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PresageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PresageError) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *PresageError) WithDetail(format string, args ...any) *PresageError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PresageError) WithSuggestion(s string) *PresageError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *PresageError) Wrap(err error) *PresageError {
	e.Wrapped = err
	return e
}

// IsStructural reports whether err is (or wraps) a structural error.
// Structural errors halt the affected render cycle.
func IsStructural(err error) bool {
	for err != nil {
		if pe, ok := err.(*PresageError); ok {
			return pe.Category == CategoryStructural
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// New creates a PresageError from a registered error code.
func New(code string) *PresageError {
	template, ok := registry[code]
	if !ok {
		return &PresageError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &PresageError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new PresageError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *PresageError {
	return &PresageError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a PresageError.
func FromError(err error, code string) *PresageError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PresageError); ok {
		return pe
	}
	return New(code).Wrap(err)
}
