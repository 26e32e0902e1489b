package models

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the core. Callers match them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrSelfDependency   = fmt.Errorf("%w: task cannot depend on itself", ErrValidation)
	ErrCyclicDependency = errors.New("cyclic dependency")
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrConflict         = errors.New("conflicting concurrent update")
)

// Validationf returns an ErrValidation carrying a formatted reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
