package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Contract violations fail fast with one of these (possibly
// wrapped with detail); cache faults never surface through them.
var (
	// ErrIndexOutOfRange is returned for out-of-range positional access.
	ErrIndexOutOfRange = errors.New("tabular: index out of range")

	// ErrUnknownColumn is returned when a column name is absent from every record.
	ErrUnknownColumn = errors.New("tabular: unknown column")

	// ErrColumnExists is returned when adding a column that is already present.
	ErrColumnExists = errors.New("tabular: column already exists")

	// ErrCast is returned when a value cannot be cast to the requested kind.
	ErrCast = errors.New("tabular: invalid cast")

	// ErrInvalidArgument is returned for malformed operation arguments.
	ErrInvalidArgument = errors.New("tabular: invalid argument")
)

// SchemaError aggregates per-field validation failures.
type SchemaError struct {
	Errors []error
}

// Error implements the error interface.
func (se *SchemaError) Error() string {
	if len(se.Errors) == 0 {
		return "tabular: schema validation failed"
	}
	if len(se.Errors) == 1 {
		return fmt.Sprintf("tabular: schema validation failed: %v", se.Errors[0])
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "tabular: schema validation failed with %d errors:\n", len(se.Errors))
	for i, err := range se.Errors {
		fmt.Fprintf(&buf, "  %d. %v\n", i+1, err)
	}
	return buf.String()
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (se *SchemaError) Unwrap() []error {
	return se.Errors
}

// newSchemaError creates a SchemaError from a slice of errors.
// Returns nil if the slice is empty.
func newSchemaError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &SchemaError{Errors: errs}
}
