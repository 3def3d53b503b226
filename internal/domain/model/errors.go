package model

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed input. Every boundary check in the domain
// wraps it so callers can map the whole family with errors.Is.
var ErrValidation = errors.New("validation failed")

// Invalidf builds an error wrapping ErrValidation.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
