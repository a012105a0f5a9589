// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

// derive builds a new Promise sharing pred's monitor, whose driver waits
// for pred to settle, then dispatches to onSettled under the new stage's
// own wait/timeout/retry discipline (runStage). Every chain operator
// (Then/Catch/Finally and their variants) is built on this one shape,
// grounded on eventloop/promise.go's Then/Catch/Finally (schedule a
// handler off the predecessor's settlement, pass through on a bypassed
// branch, convert a panic to rejection).
func derive(pred Promise, o stageOptions, onSettled func(v Result, err error, complete func(Result, error))) Promise {
	pred.core.cancelAutorun()
	monitor := pred.core.monitor
	var core *promiseCore
	core = newCore(pred.core.scheduler, o.queue, monitor, func() {
		pred.core.subscribe(func(v Result, err error) {
			runStage(core, o, func(complete func(Result, error)) {
				onSettled(v, err, complete)
			})
		})
	})
	return Promise{core: core}
}

// deriveFinally is derive's Finally-specific counterpart: it drives the new
// stage through runFinallyStage instead of runStage, so the handler always
// runs even when the chain is already cancelled by the time this stage is
// reached.
func deriveFinally(pred Promise, o stageOptions, onSettled func(v Result, err error, complete func(Result, error))) Promise {
	pred.core.cancelAutorun()
	monitor := pred.core.monitor
	var core *promiseCore
	core = newCore(pred.core.scheduler, o.queue, monitor, func() {
		pred.core.subscribe(func(v Result, err error) {
			runFinallyStage(core, o, func(complete func(Result, error)) {
				onSettled(v, err, complete)
			})
		})
	})
	return Promise{core: core}
}

// adoptBlocking cancels inner's autorun and attaches a listener, blocking
// the calling goroutine (a dedicated stage-body worker, not a shared pool
// resource) until inner settles. Per spec §4.4/§9, inner's monitor is NOT
// merged with the chain's monitor: cancelling the chain does not reach
// into inner's independently-constructed work already in flight.
func adoptBlocking(inner Promise) (Result, error) {
	inner.core.cancelAutorun()
	done := make(chan struct{})
	var v Result
	var err error
	inner.core.subscribe(func(value Result, e error) {
		v, err = value, e
		close(done)
	})
	<-done
	return v, err
}

// Then builds a successor stage: on upstream success, runs f(x) and
// forwards its (value, error) result; on upstream failure, forwards the
// error unchanged without invoking f (intermediate then stages are
// bypassed, per spec §4.4/§7).
func (p Promise) Then(f func(Result) (Result, error), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err != nil {
			complete(nil, err)
			return
		}
		withRetry(p.core.monitor, o.retry, func() (Result, error) { return f(v) }, complete)
	})
}

// ThenPromise builds a successor stage whose body transforms the upstream
// value into a nested Promise; the nested promise's eventual settlement is
// adopted as this stage's result (spec §4.4 inner-promise adoption).
func (p Promise) ThenPromise(f func(Result) (Promise, error), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err != nil {
			complete(nil, err)
			return
		}
		withRetry(p.core.monitor, o.retry, func() (Result, error) {
			inner, ferr := f(v)
			if ferr != nil {
				return nil, ferr
			}
			return adoptBlocking(inner)
		}, complete)
	})
}

// ThenCallback builds a successor stage whose body receives the upstream
// value plus (resolve, reject) and settles via whichever is called first.
func (p Promise) ThenCallback(f func(x Result, resolve ResolveFunc, reject RejectFunc), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err != nil {
			complete(nil, err)
			return
		}
		withRetryAsync(p.core.monitor, o.retry, func(resolve ResolveFunc, reject RejectFunc) {
			f(v, resolve, reject)
		}, complete)
	})
}

// ThenCancelable builds a successor stage whose body receives the upstream
// value, (resolve, reject), and a TaskSlot it may use to install a
// Cancelable the chain's monitor will forward lifecycle ops to.
func (p Promise) ThenCancelable(f func(x Result, resolve ResolveFunc, reject RejectFunc, slot TaskSlot), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err != nil {
			complete(nil, err)
			return
		}
		withRetryAsync(p.core.monitor, o.retry, func(resolve ResolveFunc, reject RejectFunc) {
			f(v, resolve, reject, TaskSlot{monitor: p.core.monitor})
		}, complete)
	})
}

// Catch builds a successor stage: on upstream failure, runs handler(e) and
// forwards its (value, error) result; on upstream success, forwards the
// value unchanged without invoking handler.
func (p Promise) Catch(handler func(error) (Result, error), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err == nil {
			complete(v, nil)
			return
		}
		withRetry(p.core.monitor, o.retry, func() (Result, error) { return handler(err) }, complete)
	})
}

// CatchPromise builds a successor stage whose failure handler returns a
// nested Promise to adopt, instead of a plain value.
func (p Promise) CatchPromise(handler func(error) (Promise, error), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err == nil {
			complete(v, nil)
			return
		}
		withRetry(p.core.monitor, o.retry, func() (Result, error) {
			inner, ferr := handler(err)
			if ferr != nil {
				return nil, ferr
			}
			return adoptBlocking(inner)
		}, complete)
	})
}

// CatchCallback builds a successor stage whose failure handler receives
// the upstream error plus (resolve, reject).
func (p Promise) CatchCallback(handler func(e error, resolve ResolveFunc, reject RejectFunc), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	return derive(p, o, func(v Result, err error, complete func(Result, error)) {
		if err == nil {
			complete(v, nil)
			return
		}
		withRetryAsync(p.core.monitor, o.retry, func(resolve ResolveFunc, reject RejectFunc) {
			handler(err, resolve, reject)
		}, complete)
	})
}

// Finally builds a successor stage that runs handler regardless of the
// upstream outcome, then forwards the upstream result unchanged — value
// and error pass through bit-for-bit. A panic inside handler does NOT
// change the forwarded result; this intentionally diverges from the
// ECMAScript spec the source followed, matching the teacher's own
// Finally (eventloop/promise.go), which notes the same divergence.
// Finally does not accept WithTimeout or WithRetry; only WithQueue is
// meaningful here.
func (p Promise) Finally(handler func(), opts ...StageOption) Promise {
	o := resolveStageOptions(p.core.queue, opts)
	o.hasTimeout = false
	o.retry = 0
	return deriveFinally(p, o, func(v Result, err error, complete func(Result, error)) {
		func() {
			defer func() { recover() }()
			handler()
		}()
		complete(v, err)
	})
}
