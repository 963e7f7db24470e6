package backend

import (
	"errors"
	"fmt"
)

// Common backend errors
var (
	// ErrUnauthorized is returned when the backend answers 401. The configured
	// unauthorized handler has already been invoked when this error is seen.
	ErrUnauthorized = errors.New("backend rejected the session token")

	// ErrUnexpectedResponse is returned when a response body does not have the
	// shape the import workflow relies on.
	ErrUnexpectedResponse = errors.New("unexpected backend response")

	// ErrMissingToken is returned by a TokenSource with no session to offer.
	ErrMissingToken = errors.New("no session token available")
)

// defaultMessage is shown when the backend gives no reason of its own.
const defaultMessage = "Erro ao comunicar com o servidor"

// APIError is a failed backend call: either a non-2xx response or a transport failure.
type APIError struct {
	// Op is the client operation that failed (e.g., "ParseFiles").
	Op string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Message is the human-readable reason taken from the body's "error" or
	// "message" field, or a generic fallback.
	Message string

	// Data is the raw response body (if any).
	Data []byte

	// Err is the transport error for Status 0.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s failed: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("backend: %s failed (status %d): %s", e.Op, e.Status, e.Message)
}

// Unwrap returns the underlying transport error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// UserMessage returns the text meant for end users.
func (e *APIError) UserMessage() string {
	return e.Message
}
