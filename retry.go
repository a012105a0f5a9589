// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import "sync"

// withRetry attempts a synchronous, throwing body up to retry+1 times.
// Between attempts, it calls monitor.Wait() and aborts with ErrCancelled if
// cancelled (spec §4.5). On exhaustion, the last error is forwarded; on
// success, the loop exits and forwards the value.
func withRetry(monitor *Monitor, retry int, body func() (Result, error), complete func(Result, error)) {
	attempts := retry + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if !monitor.Wait() {
				complete(nil, ErrCancelled)
				return
			}
		}
		v, err := safeCall(body)
		if err == nil {
			complete(v, nil)
			return
		}
		lastErr = err
		if i < attempts-1 {
			logEvent("retry", LevelWarn, "attempt failed, retrying", err, map[string]any{"attempt": i + 1, "attempts": attempts})
		}
	}
	complete(nil, lastErr)
}

// withRetryAsync attempts a callback-style body up to retry+1 times,
// waiting on an internal latch per attempt so retries are sequential
// rather than overlapping. Between attempts it checks monitor.Wait(),
// aborting with ErrCancelled if cancelled.
func withRetryAsync(monitor *Monitor, retry int, body func(resolve ResolveFunc, reject RejectFunc), complete func(Result, error)) {
	attempts := retry + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if !monitor.Wait() {
				complete(nil, ErrCancelled)
				return
			}
		}

		latch := make(chan struct{})
		var v Result
		var err error
		settleOnce := newOnceSettle(func(value Result, e error) {
			v, err = value, e
			close(latch)
		})

		// body runs in its own goroutine, exactly as eventloop/promisify.go's
		// Promisify does, so a body that exits via runtime.Goexit() only
		// unwinds this dedicated goroutine instead of the pool worker driving
		// the stage. The completed flag distinguishes that from a normal
		// return: recover() alone cannot detect Goexit, since Goexit does not
		// panic.
		completed := false
		go func() {
			defer func() {
				if r := recover(); r != nil {
					settleOnce(nil, PanicError{Value: r})
					return
				}
				if !completed {
					settleOnce(nil, ErrGoexit)
				}
			}()
			body(
				func(value Result) { settleOnce(value, nil) },
				func(e error) { settleOnce(nil, e) },
			)
			completed = true
		}()

		<-latch
		if err == nil {
			complete(v, nil)
			return
		}
		lastErr = err
		if i < attempts-1 {
			logEvent("retry", LevelWarn, "attempt failed, retrying", err, map[string]any{"attempt": i + 1, "attempts": attempts})
		}
	}
	complete(nil, lastErr)
}

// safeCall runs body in its own goroutine, converting a panic into a
// PanicError, or a runtime.Goexit() into ErrGoexit, rather than letting
// either propagate past the stage boundary or hang the stage forever.
// Grounded on eventloop/promisify.go's Promisify: body runs on a dedicated
// goroutine so a Goexit only unwinds that goroutine, and a completed flag
// (set only once body returns normally) distinguishes a normal return from
// a Goexit in the deferred recover, since Goexit does not panic.
func safeCall(body func() (Result, error)) (v Result, err error) {
	done := make(chan struct{})
	completed := false
	go func() {
		defer func() {
			if r := recover(); r != nil {
				v, err = nil, PanicError{Value: r}
			} else if !completed {
				v, err = nil, ErrGoexit
			}
			close(done)
		}()
		v, err = body()
		completed = true
	}()
	<-done
	return v, err
}

// newOnceSettle returns a completion callback that forwards only its first
// invocation; used internally by the retry loop's per-attempt latch, which
// is a strictly local, single-attempt guard distinct from the chain-wide
// pendingGuard. Safe for concurrent resolve/reject races.
func newOnceSettle(fn func(Result, error)) func(Result, error) {
	var once sync.Once
	return func(v Result, err error) {
		once.Do(func() { fn(v, err) })
	}
}
