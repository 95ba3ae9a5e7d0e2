package check

import (
	"errors"
	"fmt"
	"time"
)

// ErrReadinessTimeout is matched by every TimeoutError via errors.Is.
var ErrReadinessTimeout = errors.New("readiness timeout")

// FailureKind classifies a failed attempt.
type FailureKind string

const (
	// KindConnect indicates the target could not be reached.
	KindConnect = FailureKind("connect")
	// KindQuery indicates the target was reached but the probe request failed.
	KindQuery = FailureKind("query")
	// KindMismatch indicates the probe succeeded but returned an unexpected result.
	KindMismatch = FailureKind("mismatch")
	// KindProbe is used for failures that carry no more specific kind.
	KindProbe = FailureKind("probe")
)

// AttemptError is a transient failure of a single attempt.
type AttemptError struct {
	Kind FailureKind
	Err  error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ConnectFailure marks err as a connection failure.
func ConnectFailure(err error) error {
	return &AttemptError{Kind: KindConnect, Err: err}
}

// QueryFailure marks err as a failed request against a reachable target.
func QueryFailure(err error) error {
	return &AttemptError{Kind: KindQuery, Err: err}
}

// Mismatch marks err as an unexpected probe result.
func Mismatch(err error) error {
	return &AttemptError{Kind: KindMismatch, Err: err}
}

// KindOf reports the failure kind of err. Errors that were not marked
// with one of the constructors above are reported as KindProbe.
func KindOf(err error) FailureKind {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return attemptErr.Kind
	}

	return KindProbe
}

// TimeoutError is returned once a wait exhausted its budget without success.
type TimeoutError struct {
	Target   string
	Elapsed  time.Duration
	Attempts int
	// Err is the last failure observed, nil if no attempt was made.
	Err error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("never got ready %s after %s (%d attempts)",
		e.Target, e.Elapsed.Round(time.Millisecond), e.Attempts)
	if e.Err == nil {
		return msg
	}

	return msg + ": " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrReadinessTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrReadinessTimeout
}
