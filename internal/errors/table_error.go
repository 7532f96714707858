// Package errors provides standardized error types for pipeline operations.
// TableError carries the operation and column context so callers can report
// configuration defects without halting a run.
package errors

import (
	"fmt"
)

// TableError represents a failure of a table operation.
type TableError struct {
	Op      string // Operation name (e.g. "Clean", "Aggregate", "WriteTable")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface.
func (e *TableError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support.
func (e *TableError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
func (e *TableError) Is(target error) bool {
	if te, ok := target.(*TableError); ok {
		return e.Op == te.Op && e.Column == te.Column && e.Message == te.Message
	}
	return false
}

// NewColumnNotFoundError creates an error for operations on non-existent columns.
func NewColumnNotFoundError(op, column string) *TableError {
	return &TableError{
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewInvalidInputError creates an error for invalid operation inputs.
func NewInvalidInputError(op, message string) *TableError {
	return &TableError{
		Op:      op,
		Message: message,
	}
}

// NewInternalError creates an error for internal operation failures.
func NewInternalError(op string, cause error) *TableError {
	return &TableError{
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}
