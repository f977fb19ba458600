package evaluator

import (
	"errors"
	"fmt"
)

// ErrTerminated is returned when evaluation was cut short because the
// surrounding context was cancelled (typically by a termination signal).
var ErrTerminated = errors.New("evaluation terminated")

// Error is a condition raised by user code.
type Error struct {
	// Name is the host error class, e.g. "ReferenceError"
	Name string

	// Message is the condition message without the class name
	Message string

	// Value is the raised host value, if any
	Value any

	// Cause is the underlying interpreter error
	Cause error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitError is raised when user code asks the process to exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit requested with status %d", e.Code)
}

// IsFatal reports whether err must propagate past the session instead of
// being recorded as a user error.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var exit *ExitError
	return errors.As(err, &exit) || errors.Is(err, ErrTerminated)
}

// Message returns the bare condition message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
