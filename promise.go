// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import "sync"

// Result carries a stage's success value. It is a dynamic, JS-like value
// carrier — a deliberate choice, grounded on the teacher's own identical
// choice (eventloop/promise.go: type Result = any) for this exact problem
// shape: Then changes a value's type per stage, and the aggregators combine
// promises of heterogeneous payload types, which Go's method-level generics
// (no additional type parameters on methods) cannot express directly.
type Result = any

// ResolveFunc settles a callback-style stage body with a success value.
type ResolveFunc func(Result)

// RejectFunc settles a callback-style stage body with a failure.
type RejectFunc func(error)

// TaskSlot lets a cancelable-producer body install a Cancelable into its
// stage's monitor, so suspend/resume/cancel on the chain reach the body's
// own wrapped asynchronous work.
type TaskSlot struct {
	monitor *Monitor
}

// Set installs task as the monitor's wrapped cancelable task. The monitor
// takes ownership and immediately forwards any pause/cancel signal already
// in effect.
func (s TaskSlot) Set(task Cancelable) {
	s.monitor.InstallTask(task)
}

// Promise is a lightweight, cheaply copyable handle over a triple: a driver
// that arranges the stage's work, an auto-run handle, and the chain's
// shared Monitor. Copying a Promise value copies the handle, not the chain.
type Promise struct {
	core *promiseCore
}

// promiseCore is the shared, reference-counted-by-GC state one Promise
// value's handle points at: settlement bookkeeping (grounded on
// eventloop/promise.go's subscriber fan-out: snapshot-then-release handlers
// under one mutex) plus the pieces needed to run the stage body exactly
// once, whether triggered by a subscriber attaching or by the deferred
// autorun firing first.
type promiseCore struct {
	monitor   *Monitor
	scheduler Scheduler
	queue     QueueID

	bodyOnce sync.Once
	runBody  func()

	mu          sync.Mutex
	settled     bool
	result      Result
	err         error
	subscribers []func(Result, error)

	autorunMu     sync.Mutex
	autorunHandle CancelHandle
}

// subscribe registers cb to observe this stage's eventual settlement. If
// already settled, cb is invoked immediately (synchronously, on the calling
// goroutine) with the latched result. Otherwise cb is queued and the stage
// body is triggered (idempotently) if it has not started yet.
func (c *promiseCore) subscribe(cb func(Result, error)) {
	c.mu.Lock()
	if c.settled {
		v, err := c.result, c.err
		c.mu.Unlock()
		cb(v, err)
		return
	}
	c.subscribers = append(c.subscribers, cb)
	c.mu.Unlock()
	c.trigger()
}

// trigger runs the stage body at most once, however it is first reached:
// an explicit subscribe (then/catch/finally/await) or the deferred autorun.
func (c *promiseCore) trigger() {
	c.bodyOnce.Do(c.runBody)
}

// settle latches this stage's result and fans it out to every subscriber
// registered so far; later subscribers observe the latched result
// directly. Only the first call has any effect.
func (c *promiseCore) settle(v Result, err error) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return
	}
	c.settled = true
	c.result, c.err = v, err
	subs := c.subscribers
	c.subscribers = nil
	c.mu.Unlock()
	for _, s := range subs {
		s(v, err)
	}
}

// cancelAutorun stops the deferred autorun dispatch, if it has not already
// fired. Every chain operator calls this the moment it attaches, per
// spec §4.3: a promise that is neither chained nor awaited still runs its
// body once (fire-and-forget), but a chained promise runs exactly once via
// the chain instead.
func (c *promiseCore) cancelAutorun() {
	c.autorunMu.Lock()
	h := c.autorunHandle
	c.autorunHandle = nil
	c.autorunMu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// armAutorun schedules the deferred, no-op-callback self-run.
func (c *promiseCore) armAutorun() {
	c.autorunMu.Lock()
	defer c.autorunMu.Unlock()
	c.autorunHandle = c.scheduler.SubmitAfter(c.queue, autorunDelay, func() {
		c.trigger()
	})
}

// newCore builds a promiseCore sharing monitor, wired to run runBody
// exactly once (on first subscribe or autorun fire), and arms its autorun.
func newCore(scheduler Scheduler, queue QueueID, monitor *Monitor, runBody func()) *promiseCore {
	c := &promiseCore{
		monitor:   monitor,
		scheduler: scheduler,
		queue:     queue,
		runBody:   runBody,
	}
	c.armAutorun()
	return c
}

// settledCore builds a promiseCore whose single stage is already resolved
// or rejected; its body is a no-op (there is no work left to run or
// cancel). scheduler/queue are retained so a chain operator attached to
// this seed still has somewhere to run the next stage.
func settledCore(scheduler Scheduler, v Result, err error) *promiseCore {
	c := &promiseCore{monitor: NewMonitor(), scheduler: scheduler, queue: Default}
	c.bodyOnce.Do(func() {})
	c.settled = true
	c.result, c.err = v, err
	return c
}

// Resolved returns an already-fulfilled Promise carrying v. scheduler is
// the Scheduler any chain operator attached to it will use to run its
// stage.
func Resolved(scheduler Scheduler, v Result) Promise {
	return Promise{core: settledCore(scheduler, v, nil)}
}

// Rejected returns an already-failed Promise carrying err.
func Rejected(scheduler Scheduler, err error) Promise {
	return Promise{core: settledCore(scheduler, nil, err)}
}

// runStage is the common driver body every constructor and chain operator
// uses (spec §4.3's three numbered steps): install the pending-guard
// (arming on-cancel), optionally arm a timeout against it, then run body
// under monitor.Wait(), installing a fresh on-cancel only implicitly via
// the pending-guard itself (the guard IS the on-cancel-racer).
func runStage(core *promiseCore, opts stageOptions, body func(complete func(Result, error))) {
	p := newPendingGuard(core.monitor, core.settle)

	if opts.hasTimeout {
		handle := core.scheduler.SubmitAfter(opts.queue, opts.timeout, func() {
			logEvent("timeout", LevelWarn, "stage timed out", nil, map[string]any{"queue": string(opts.queue), "timeout": opts.timeout.String()})
			p(nil, ErrTimedOut)
		})
		wrapped := p
		p = func(v Result, err error) {
			handle.Cancel()
			wrapped(v, err)
		}
	}

	run := func() {
		if !core.monitor.Wait() {
			logEvent("promise", LevelDebug, "stage aborted before running: cancelled", nil, map[string]any{"queue": string(opts.queue)})
			p(nil, ErrCancelled)
			return
		}
		body(p)
	}

	if cur, ok := core.scheduler.CurrentQueueID(); ok && cur == opts.queue {
		run()
	} else {
		core.scheduler.Submit(opts.queue, run)
	}
}

// runFinallyStage is Finally's own driver: unlike runStage, it does NOT
// abort when monitor.Wait() reports cancellation — the handler runs
// regardless of upstream or in-flight cancellation (the reimplementer's
// choice recorded for spec §9's "finally on a cancelled chain" open
// question). It arms no on-cancel hook, so the stage settles only after
// the handler has returned: with ErrCancelled if Wait observed
// cancellation, otherwise with the forwarded upstream result. Downstream
// stages therefore never observe this stage's result before its handler
// has run.
func runFinallyStage(core *promiseCore, opts stageOptions, body func(complete func(Result, error))) {
	p := newOnceSettle(core.settle)

	run := func() {
		ok := core.monitor.Wait()
		body(func(v Result, err error) {
			if !ok {
				v, err = nil, ErrCancelled
			}
			p(v, err)
		})
	}

	if cur, ok := core.scheduler.CurrentQueueID(); ok && cur == opts.queue {
		run()
	} else {
		core.scheduler.Submit(opts.queue, run)
	}
}

// NewThrowing builds a Promise whose body returns a value or an error
// directly. The stage is dispatched on its queue; the body itself runs on a
// goroutine of its own (see safeCall) while the queue's worker waits for it.
func NewThrowing(scheduler Scheduler, body func() (Result, error), opts ...StageOption) Promise {
	o := resolveStageOptions(Default, opts)
	monitor := NewMonitor()
	var core *promiseCore
	core = newCore(scheduler, o.queue, monitor, func() {
		runStage(core, o, func(complete func(Result, error)) {
			withRetry(monitor, o.retry, func() (Result, error) {
				return body()
			}, complete)
		})
	})
	return Promise{core: core}
}

// NewCallback builds a Promise whose body receives (resolve, reject) and
// settles via whichever is called first.
func NewCallback(scheduler Scheduler, body func(resolve ResolveFunc, reject RejectFunc), opts ...StageOption) Promise {
	o := resolveStageOptions(Default, opts)
	monitor := NewMonitor()
	var core *promiseCore
	core = newCore(scheduler, o.queue, monitor, func() {
		runStage(core, o, func(complete func(Result, error)) {
			withRetryAsync(monitor, o.retry, func(resolve ResolveFunc, reject RejectFunc) {
				body(resolve, reject)
			}, complete)
		})
	})
	return Promise{core: core}
}

// NewCancelable builds a Promise whose body receives (resolve, reject, a
// task slot). The body may install a Cancelable into the slot so the
// chain's monitor can forward suspend/resume/cancel to it.
func NewCancelable(scheduler Scheduler, body func(resolve ResolveFunc, reject RejectFunc, slot TaskSlot), opts ...StageOption) Promise {
	o := resolveStageOptions(Default, opts)
	monitor := NewMonitor()
	var core *promiseCore
	core = newCore(scheduler, o.queue, monitor, func() {
		runStage(core, o, func(complete func(Result, error)) {
			withRetryAsync(monitor, o.retry, func(resolve ResolveFunc, reject RejectFunc) {
				body(resolve, reject, TaskSlot{monitor: monitor})
			}, complete)
		})
	})
	return Promise{core: core}
}

// Suspend pauses the chain: no not-yet-started stage runs its body until
// Resume is called, and the current stage's wrapped cancelable task (if
// any) is told to suspend. Idempotent.
func (p Promise) Suspend() { p.core.monitor.Suspend() }

// Resume releases a prior Suspend. A Resume without a prior Suspend is a
// no-op.
func (p Promise) Resume() { p.core.monitor.Resume() }

// Cancel atomically interrupts all not-yet-started downstream stages and
// the current stage's wrapped cancelable task. Idempotent.
func (p Promise) Cancel() { p.core.monitor.Cancel() }

// Monitor returns the chain's shared lifecycle controller.
func (p Promise) Monitor() *Monitor { return p.core.monitor }
