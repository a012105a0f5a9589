// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import "time"

// QueueID names a worker pool a Scheduler dispatches work onto.
type QueueID string

const (
	// Main is the queue conventionally reserved for a consumer's primary
	// work (analogous to a UI/foreground pool).
	Main QueueID = "main"
	// Default is the queue stages use when no queue is specified.
	Default QueueID = "default"
)

// CancelHandle cancels a delayed dispatch scheduled via Scheduler.SubmitAfter.
// Calling it after the work has already started running has no effect.
type CancelHandle interface {
	Cancel() bool
}

// Scheduler is the Scheduler Interface (SI) every chain in this package is
// driven through: submit work to a named pool, submit delayed work, and
// identify the calling goroutine's pool, if any. See package workerpool for
// a concrete, goroutine-pool-backed implementation.
//
// Implementations must execute each submission exactly once (unless
// cancelled before firing) and must not run work synchronously inside
// Submit, except for the "stay on current pool" optimization: when
// CurrentQueueID() already equals the requested queue, Submit may run work
// synchronously instead of re-enqueueing it.
type Scheduler interface {
	Submit(queue QueueID, work func())
	SubmitAfter(queue QueueID, delay time.Duration, work func()) CancelHandle
	CurrentQueueID() (QueueID, bool)
}
