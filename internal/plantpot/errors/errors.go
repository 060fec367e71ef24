// Package errors defines the error taxonomy shared by the watering engine and its tooling
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Engine errors
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrSensorUnavailable  = errors.New("sensor unavailable")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrCommandUnreadable  = errors.New("command unreadable")
	ErrPumpBusy           = errors.New("pump busy")

	// Operator surface errors
	ErrEngineNotRunning = errors.New("engine not running")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrUnauthorized     = errors.New("unauthorized")
)

// Wrap wraps an error with additional context
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark attaches a sentinel to err so callers can match either with Is.
func Mark(err, sentinel error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Is checks if the error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As checks if the error can be unwrapped to the target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
