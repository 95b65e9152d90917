package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	ID       int
}

func NewNotFoundError(resource string, id int) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// IsNotFound reports whether the root cause of err is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// PolicyError is returned when an operation breaks a gating rule (locked course, exhausted exam, ...).
type PolicyError struct {
	Reason string
}

func NewPolicyError(format string, args ...interface{}) error {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

func (err PolicyError) Error() string {
	return err.Reason
}

func IsPolicyViolation(err error) bool {
	_, ok := errors.Cause(err).(*PolicyError)
	return ok
}

// InvalidSubmissionError is returned when an exam submission cannot be evaluated.
type InvalidSubmissionError struct {
	Reason string
}

func NewInvalidSubmissionError(format string, args ...interface{}) error {
	return &InvalidSubmissionError{Reason: fmt.Sprintf(format, args...)}
}

func (err InvalidSubmissionError) Error() string {
	return err.Reason
}

func IsInvalidSubmission(err error) bool {
	_, ok := errors.Cause(err).(*InvalidSubmissionError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
