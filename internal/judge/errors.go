package judge

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a backend failure worth retrying: timeouts, rate
// limits, 5xx responses, and malformed-but-recoverable output.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// PermanentError marks a failure no retry can fix: bad credentials or a
// request the backend rejected outright.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Cause)
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// Transient wraps err as a TransientError.
func Transient(err error) error {
	return &TransientError{Cause: err}
}

// Transientf formats and wraps a TransientError.
func Transientf(format string, args ...any) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return &PermanentError{Cause: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// classify maps a raw transport error into the transient/permanent taxonomy.
// Anything already classified passes through untouched.
func classify(err error, statusCode int) error {
	if IsTransient(err) || IsPermanent(err) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(err)
	}

	switch {
	case statusCode == 408 || statusCode == 429 || statusCode >= 500:
		return Transient(err)
	case statusCode >= 400:
		return Permanent(err)
	default:
		// Connection resets and other transport-level failures are worth a
		// retry.
		return Transient(err)
	}
}
