package loader

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrTensorNotFound    = errors.New("tensor not found")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
	ErrOutOfBounds       = errors.New("tensor extends beyond data section")
	ErrWeightMismatch    = errors.New("weights do not match module")
	ErrUnsupportedFormat = errors.New("unsupported weight naming format")
)

// MaxHeaderSize is the largest accepted JSON header.
const MaxHeaderSize = 100 * 1024 * 1024

// ValidationError provides detailed information about a malformed file.
type ValidationError struct {
	Tensor  string // tensor name involved, if any
	Details string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
