package api

import (
	"errors"
	"fmt"
)

// ErrUnreachable is the sentinel wrapped by UnreachableError.
var ErrUnreachable = errors.New("No response from server. Please check your connection.")

// UnreachableError is returned when a request was sent but no response arrived.
type UnreachableError struct {
	Method string
	Path   string
	Err    error
}

func (e *UnreachableError) Error() string {
	return ErrUnreachable.Error()
}

// Is lets errors.Is(err, ErrUnreachable) match.
func (e *UnreachableError) Is(target error) bool {
	return target == ErrUnreachable
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// RejectedError is returned for any non-2xx response.
type RejectedError struct {
	Status  int
	Message string // server "message" field, or "Unknown error"
}

func (e *RejectedError) Error() string {
	return "API Error: " + e.Message
}

// SetupError is returned when the request could not be built.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("Request Error: %v", e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to a user for err. Rejected errors
// surface the server message verbatim; anything else falls back to Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	if errors.Is(err, ErrUnreachable) {
		return ErrUnreachable.Error()
	}
	var setup *SetupError
	if errors.As(err, &setup) {
		return setup.Error()
	}
	return err.Error()
}

// IsUnauthorized reports whether err is a 401 or 403 rejection, which callers
// treat as an expired or revoked token.
func IsUnauthorized(err error) bool {
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		return false
	}
	return rejected.Status == 401 || rejected.Status == 403
}
