// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package promise provides chainable, scheduler-driven asynchronous
// computations: a Promise settles exactly once with a value or an error,
// chains compose via Then/Catch/Finally, and a shared Monitor gives every
// stage of a chain cooperative suspend/resume/cancel.
//
// The package has no event loop of its own. Every constructor and chain
// operator dispatches its stage body through a caller-supplied Scheduler
// (see package workerpool for a concrete, goroutine-pool-backed one); this
// package only adds the settlement, lifecycle, retry, and timeout semantics
// layered on top of whatever pool runs the work.
package promise
