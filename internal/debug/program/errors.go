package program

import (
	"errors"
	"fmt"
)

// ErrMalformedMessage is matched by every decode failure.
var ErrMalformedMessage = errors.New("malformed message")

// MalformedMessageError describes why an inbound payload was rejected.
type MalformedMessageError struct {
	// Reason is a short description of the failed check.
	Reason string
	// Err is the underlying parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return "malformed message: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedMessage) succeed.
func (e *MalformedMessageError) Is(target error) bool {
	return target == ErrMalformedMessage
}

func malformed(reason string, err error) error {
	return &MalformedMessageError{Reason: reason, Err: err}
}
