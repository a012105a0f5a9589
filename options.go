// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import "time"

// stageOptions collects the per-stage configuration StageOption mutates,
// grounded on the teacher's functional-options pattern
// (eventloop/options.go: LoopOption/resolveLoopOptions).
type stageOptions struct {
	queue      QueueID
	hasQueue   bool
	timeout    time.Duration
	hasTimeout bool
	retry      int
}

// StageOption configures a single stage of a chain: its target queue, an
// optional timeout, and an optional retry count.
type StageOption interface {
	applyStage(*stageOptions)
}

type stageOptionFunc func(*stageOptions)

func (f stageOptionFunc) applyStage(o *stageOptions) { f(o) }

// WithQueue targets the stage's body at a specific queue instead of the
// chain's default.
func WithQueue(queue QueueID) StageOption {
	return stageOptionFunc(func(o *stageOptions) {
		o.queue = queue
		o.hasQueue = true
	})
}

// WithTimeout arms a timeout against the stage's pending-guard: if the
// stage has not settled within d, it settles with ErrTimedOut and the
// eventual body completion (if any) is dropped.
func WithTimeout(d time.Duration) StageOption {
	return stageOptionFunc(func(o *stageOptions) {
		o.timeout = d
		o.hasTimeout = true
	})
}

// WithRetry attempts the stage body up to n+1 times, checking for
// cancellation between attempts, forwarding the last error on exhaustion.
func WithRetry(n int) StageOption {
	return stageOptionFunc(func(o *stageOptions) {
		if n > 0 {
			o.retry = n
		}
	})
}

func resolveStageOptions(defaultQueue QueueID, opts []StageOption) stageOptions {
	o := stageOptions{queue: defaultQueue}
	for _, opt := range opts {
		if opt != nil {
			opt.applyStage(&o)
		}
	}
	return o
}

// autorunDelay is the deferred-autorun constant (spec §4.3, §9): a
// pragmatic short delay permitting chain attachment before a constructed
// promise's body runs on its own. Any short delay satisfies the contract;
// the test suite must not depend on this exact value.
const autorunDelay = 10 * time.Millisecond
