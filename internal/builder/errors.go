package builder

import (
	"errors"
	"fmt"

	"github.com/provq/provq/internal/querysql"
)

// QueryError represents an error raised by the builder or its
// execution surface.
//
// Query errors include:
//   - Invalid input: malformed selectors, duplicate tags, unknown
//     operators or keywords, unresolved join targets
//   - Result cardinality: One finding zero or more than one row
//   - Internal consistency: a result row whose width disagrees with
//     the compiled projection table
//
// Type mismatches detected while compiling a join keep their own
// type, querysql.TypeMismatchError; IsTypeMismatchError matches both.
type QueryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Tag identifies the affected vertex or edge tag, when one is
	// involved.
	Tag string
}

// ErrorCode categorizes query errors.
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates a malformed argument rejected
	// before any backend interaction.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeTypeMismatch indicates a join between entity kinds the
	// requested keyword cannot connect.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeNotExistent indicates One matched no row.
	ErrCodeNotExistent ErrorCode = "NOT_EXISTENT"

	// ErrCodeMultipleObjects indicates One matched more than one row.
	ErrCodeMultipleObjects ErrorCode = "MULTIPLE_OBJECTS"

	// ErrCodeInternal indicates a consistency violation that signals a
	// compiler bug. Never caught or retried.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Result cardinality sentinels returned by One.
var (
	// ErrNotExistent reports that no result was found.
	ErrNotExistent = &QueryError{Code: ErrCodeNotExistent, Message: "no result was found"}

	// ErrMultipleObjects reports that more than one result was found.
	ErrMultipleObjects = &QueryError{Code: ErrCodeMultipleObjects, Message: "more than one result was found"}
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s: %s (tag=%s)", e.Code, e.Message, e.Tag)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInputError creates a QueryError for a rejected argument.
func NewInputError(format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInternalError creates a QueryError for an internal consistency
// violation.
func NewInternalError(format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// withTag attaches the affected tag to a freshly constructed error.
// Never call it on the shared sentinels.
func (e *QueryError) withTag(tag string) *QueryError {
	e.Tag = tag
	return e
}

// IsInputError returns true if the error is an invalid-input error.
// Uses errors.As to handle wrapped errors.
func IsInputError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeInvalidInput
	}
	return false
}

// IsTypeMismatchError returns true if the error is a join type
// mismatch. Matches both QueryError with ErrCodeTypeMismatch and
// querysql.TypeMismatchError. Uses errors.As to handle wrapped errors.
func IsTypeMismatchError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeTypeMismatch
	}
	var tm *querysql.TypeMismatchError
	return errors.As(err, &tm)
}

// IsNotExistentError returns true if the error reports an empty One
// result. Uses errors.As to handle wrapped errors.
func IsNotExistentError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeNotExistent
	}
	return false
}

// IsMultipleObjectsError returns true if the error reports an
// ambiguous One result. Uses errors.As to handle wrapped errors.
func IsMultipleObjectsError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeMultipleObjects
	}
	return false
}

// IsInternalError returns true if the error is an internal
// consistency error. Uses errors.As to handle wrapped errors.
func IsInternalError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeInternal
	}
	return false
}
