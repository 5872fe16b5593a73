package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingReferenceData is returned when a required catalog row does not
	// exist, e.g. no phosphate dissociation row for the requested pH.
	ErrMissingReferenceData = errors.New("missing reference data")

	// ErrMalformedNumericInput marks a user-supplied number that failed to parse
	// or is out of range.
	ErrMalformedNumericInput = errors.New("malformed numeric input")

	// ErrConcentrationOutOfRange marks a dosing line whose weight per liter is
	// too large to compute with.
	ErrConcentrationOutOfRange = errors.New("concentration out of range")
)

// InputError describes a rejected user-supplied field.
type InputError struct {
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err contains an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
