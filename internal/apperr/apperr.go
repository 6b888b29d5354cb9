// Package apperr defines the error taxonomy shared by the console components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how it must be propagated.
type Kind string

const (
	// Validation covers empty required input and rejected files.
	Validation Kind = "validation"
	// Network covers transport failures talking to the analysis backend.
	Network Kind = "network"
	// Server covers well-formed backend responses that report a failure
	// or carry an unexpected status value.
	Server Kind = "server"
	// Render covers malformed result shapes found during presentation.
	Render Kind = "render"
	// Busy is returned when a job is already running.
	Busy Kind = "busy"
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the text shown on the error surface. Server-reported
// messages are passed through verbatim.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
