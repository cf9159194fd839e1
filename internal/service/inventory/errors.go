package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound = errors.New("event not found")
)

// ValidationError rejects malformed input before any domain logic runs.
// It never accompanies a state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a caller-input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
