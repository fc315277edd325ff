package engine

import "fmt"

// ValidationError is a malformed or missing input.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// ConflictError is a state precondition that no longer holds.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return ConflictError{Msg: fmt.Sprintf(format, args...)}
}
