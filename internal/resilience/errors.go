package resilience

import (
	"errors"
	"fmt"
)

// TransientError wraps an error that is safe to retry, such as a crashed
// worker unit. Data and configuration errors must never be wrapped in it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// PanicError records a panic recovered from a worker unit.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// Recovered converts a recovered panic value into a transient error. It
// returns nil when v is nil.
func Recovered(v any) error {
	if v == nil {
		return nil
	}
	return NewTransientError(&PanicError{Value: v})
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	return errors.As(err, &te)
}

// Classify categorizes an error as "transient" or "permanent".
func Classify(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
