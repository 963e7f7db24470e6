package session

import (
	"errors"
	"fmt"
)

// Common session errors
var (
	// ErrIndexOutOfRange is returned when a record index does not exist in the session.
	ErrIndexOutOfRange = errors.New("record index out of range")

	// ErrUnknownField is returned by UpdateField for a field name the record does not have.
	ErrUnknownField = errors.New("unknown record field")

	// ErrInvalidValue is returned when a field value cannot be coerced to the field's type.
	ErrInvalidValue = errors.New("invalid field value")

	// ErrBusy is returned by TryDo while another parse or commit holds the session.
	ErrBusy = errors.New("session is busy")

	// ErrClosed is returned once the session has been closed; late results are dropped.
	ErrClosed = errors.New("session is closed")

	// ErrNoFiles is returned when ParseFiles is called with an empty selection.
	ErrNoFiles = errors.New("no files selected")
)

// SessionError wraps errors with the operation and session that failed.
type SessionError struct {
	// Op is the operation that failed (e.g., "ParseFiles", "UpdateField").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// SessionID identifies the session (if available).
	SessionID string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("session: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("session: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// FieldError reports a rejected field update.
type FieldError struct {
	Field   Field
	Value   interface{}
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap returns ErrInvalidValue or ErrUnknownField.
func (e *FieldError) Unwrap() error {
	return e.Err
}

func newFieldError(field Field, value interface{}, message string) *FieldError {
	return &FieldError{Field: field, Value: value, Message: message, Err: ErrInvalidValue}
}
