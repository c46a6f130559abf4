package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed intent arguments; nothing was changed.
	ErrValidation = errors.New("invalid arguments")
	// ErrNotFound marks a missing group, user or registry row; nothing was changed.
	ErrNotFound = errors.New("not found")
)

// PlatformError is a failed Telegram call whose local state change was kept.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s recorded, platform action may not have occurred: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
