package futures

import (
	"errors"
	"fmt"
)

// Result is the value carried by a successfully completed [Future].
// It can be any type, including another *[Future] (see the auto-collapse
// rule documented on [FutureSource.TrySetResult]).
type Result = any

// Failure is the value carried by a failed [Future]. Two well-known
// shapes convey library-originated failures: a *[CancelToken] (see
// [HasFailedWithCancel]) and [ErrTimeout] (see [HasFailedWithTimeout]).
type Failure = any

// ErrTimeout is the distinguished failure value used by timeout-producing
// combinators (there are none in the core package itself, but [AfterDelay]
// callers and external timer adapters are expected to fail futures with
// this sentinel so that [HasFailedWithTimeout] can recognize them).
var ErrTimeout = errors.New("futures: operation timed out")

// PreconditionError is raised for programmer errors: bad arguments,
// calling a ForceSet/ForceGet method on a subject that is not in the
// required state, or passing a required-non-nil argument as nil.
//
// PreconditionError is never surfaced through a [Future]'s failure value
// by this package; it is panicked directly to the caller that violated
// the precondition.
type PreconditionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("futures: precondition failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("futures: precondition failed: %s", e.Message)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

func newPreconditionError(message string) *PreconditionError {
	return &PreconditionError{Message: message}
}

// HasFailedWithCancel reports whether f is [Failed] with a *[CancelToken]
// as its failure value, and returns that token. This is how downstream
// code distinguishes "failed because an unless-token cancelled" from an
// ordinary application failure (spec §7).
func HasFailedWithCancel(f *Future) (*CancelToken, bool) {
	if f == nil || f.State() != Failed {
		return nil, false
	}
	tok, ok := f.ForceGetFailure().(*CancelToken)
	return tok, ok
}

// HasFailedWithTimeout reports whether f is [Failed] with [ErrTimeout]
// (or a failure value satisfying errors.Is(v, ErrTimeout)) as its failure
// value.
func HasFailedWithTimeout(f *Future) bool {
	if f == nil || f.State() != Failed {
		return false
	}
	err, ok := f.ForceGetFailure().(error)
	return ok && errors.Is(err, ErrTimeout)
}

// AggregateAwaitError collects the per-item outcomes of an aggregation
// combinator ([ThenAll], [Race]) that failed because every input failed
// (or, for [ThenAll], because at least one input failed).
//
// Futures holds every input future (for [Race], every starter's future),
// in input order.
type AggregateAwaitError struct {
	Message string
	Futures []*Future
}

// Error implements the error interface.
func (e *AggregateAwaitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("futures: %d future(s) did not all succeed", len(e.Futures))
}
