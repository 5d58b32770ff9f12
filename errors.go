package chasm

import "github.com/pkg/errors"

// InvalidArgumentError is returned when a required argument is missing or
// blank. Name identifies the argument.
type InvalidArgumentError struct {
	Name   string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	if e.Reason != "" {
		return "invalid argument " + e.Name + ": " + e.Reason
	}
	return "invalid argument " + e.Name + ": missing or blank"
}

// SerializationError is returned when a codec produces or consumes an
// unexpected shape: a payload shorter than the entity's minimum length, or
// a malformed encoding.
type SerializationError struct {
	Entity   string
	Reason   string
	Got      int
	Expected int
}

func (e SerializationError) Error() string {
	msg := errors.Errorf("serialization error for %s: %s", e.Entity, e.Reason)
	if e.Expected > 0 {
		return errors.Wrapf(msg, "got %d bytes, expected at least %d", e.Got, e.Expected).Error()
	}
	return msg.Error()
}

// ConcurrencyConflictError is returned when a compare-and-swap ref write
// detects that the observed current commit id does not match the caller's
// expected previous commit id.
type ConcurrencyConflictError struct {
	Name   string
	Branch string
}

func (e ConcurrencyConflictError) Error() string {
	return "concurrency conflict on ref " + e.Name + "/" + e.Branch
}

// BackendError wraps an underlying storage error that is not one of the
// other typed errors.
type BackendError struct {
	Op    string
	Cause error
}

func (e BackendError) Error() string {
	return errors.Wrapf(e.Cause, "backend error during %s", e.Op).Error()
}

func (e BackendError) Unwrap() error {
	return e.Cause
}

// CancelledError is returned when an operation observes that its
// cancellation signal has fired.
type CancelledError struct {
	Cause error
}

func (e CancelledError) Error() string {
	if e.Cause != nil {
		return errors.Wrap(e.Cause, "cancelled").Error()
	}
	return "cancelled"
}

func (e CancelledError) Unwrap() error {
	return e.Cause
}
