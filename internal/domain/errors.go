package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBirthDate = errors.New("birth date is required")
	ErrInvalidDate      = errors.New("invalid date")
	ErrUnknownField     = errors.New("unknown field")
)

// WrongInputError reports a user-supplied value that cannot be coerced
// to what an operation expects, e.g. a non-numeric record id.
type WrongInputError struct {
	Field string
	Value string
}

func (e *WrongInputError) Error() string {
	return fmt.Sprintf("wrong input for %s: %q", e.Field, e.Value)
}
