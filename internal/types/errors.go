// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// ErrAuthExpired means the backend rejected our credentials. Local session
// state must be cleared and the user asked to log in again.
var ErrAuthExpired = errors.New("authentication expired")

// ErrSendInFlight is returned when a send is attempted while another send
// on the same coordinator has not finished.
var ErrSendInFlight = errors.New("another send is in flight")

// ValidationError is a locally-detected input problem. It never reaches the
// network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NetworkError wraps a transport-level failure (connection refused, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-429, non-401 error response from the backend.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
}
