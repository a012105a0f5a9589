// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import (
	"errors"
	"fmt"
)

// sentinelError is a comparable error type used for the closed ErrorKind
// family (TimedOut, Cancelled, Empty) that carry no payload of their own.
type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var (
	// ErrTimedOut is produced when a stage's configured timeout wins the
	// pending-guard race against the stage body's completion.
	ErrTimedOut error = sentinelError("promise: stage timed out")

	// ErrCancelled is produced when a monitor's cancel hook settles the
	// stage that armed it.
	ErrCancelled error = sentinelError("promise: cancelled")

	// ErrEmpty is produced by race/any when called with zero members.
	ErrEmpty error = sentinelError("promise: no members")

	// ErrGoexit is reported when a stage body runs to completion via
	// runtime.Goexit() instead of returning (or, for callback-style bodies,
	// calling resolve/reject), so the stage still settles rather than
	// hanging or leaking the goroutine that was driving it.
	ErrGoexit error = sentinelError("promise: goroutine exited via runtime.Goexit")
)

// PanicError wraps a value recovered from a panicking stage body, so the
// stage settles with a rejection instead of propagating the panic up an
// unrelated goroutine's stack.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("promise: stage panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the recovered panic value was
// itself an error, enabling errors.Is/errors.As through the panic boundary.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// AggregateError is produced by Any when every member rejects. Errors
// preserves the member construction order, not the settlement order.
type AggregateError struct {
	Errors []error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	return fmt.Sprintf("promise: all %d members rejected", len(e.Errors))
}

// Unwrap supports errors.Is/errors.As against any member error.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Is reports whether target is also an *AggregateError, matching regardless
// of contents (use Unwrap to inspect individual member errors).
func (e *AggregateError) Is(target error) bool {
	var other *AggregateError
	return errors.As(target, &other)
}
