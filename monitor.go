// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import "sync"

// Cancelable is the capability set a wrapped asynchronous task implements so
// a stage can offer lifecycle control over work it does not itself drive —
// an HTTP request, a timer, a subprocess. A Monitor forwards suspend/resume/
// cancel to whatever Cancelable is currently installed in its task slot.
type Cancelable interface {
	Suspend()
	Resume()
	Cancel()
}

// Monitor is the lifecycle controller shared by every stage of one promise
// chain: a cancellation flag, a pause gate, an on-cancel hook, and a slot
// for the current stage's wrapped cancelable task. All state is mutated
// under a single mutex, matching the discipline ChainedPromise uses to
// guard its settlement fields; the pause gate's close-once wake semantics
// are grounded on the AWS SSM agent's ChanneledCancelFlag (Set closes a
// channel exactly once to release every Wait-er).
type Monitor struct {
	mu        sync.Mutex
	cancelled bool
	gateCh    chan struct{} // non-nil while paused; closed by resume
	onCancel  func()
	task      Cancelable
	onDeinit  func()
}

// NewMonitor returns a fresh, unpaused, uncancelled Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// InstallOnDeinit installs the hook fired when Close is called on the
// monitor (used by leak-detection tests to observe a chain's disposal).
func (m *Monitor) InstallOnDeinit(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDeinit = hook
}

// Close fires the on-deinit hook, if any, exactly once. It does not affect
// cancellation or pause state; it exists purely for leak-detection tests
// that need to observe when a chain's last handle is released.
func (m *Monitor) Close() {
	m.mu.Lock()
	hook := m.onDeinit
	m.onDeinit = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Suspend idempotently installs the pause gate, if absent, and forwards to
// the wrapped task's Suspend, if one is installed.
func (m *Monitor) Suspend() {
	m.mu.Lock()
	if m.gateCh == nil {
		m.gateCh = make(chan struct{})
	}
	task := m.task
	m.mu.Unlock()
	if task != nil {
		task.Suspend()
	}
}

// Resume releases the pause gate, if present (waking every blocked Wait
// call), and forwards to the wrapped task's Resume. A Resume not paired
// with a prior Suspend is a no-op.
func (m *Monitor) Resume() {
	m.mu.Lock()
	ch := m.gateCh
	m.gateCh = nil
	task := m.task
	m.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	if task != nil {
		task.Resume()
	}
}

// Cancel sets cancelled, fires the on-cancel hook (if installed) exactly
// once, releases the pause gate so blocked waiters observe cancellation
// promptly, and forwards to the wrapped task's Cancel. Idempotent.
func (m *Monitor) Cancel() {
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return
	}
	m.cancelled = true
	hook := m.onCancel
	m.onCancel = nil
	ch := m.gateCh
	m.gateCh = nil
	task := m.task
	m.mu.Unlock()

	logEvent("monitor", LevelInfo, "cancelled", nil, nil)

	if ch != nil {
		close(ch)
	}
	if hook != nil {
		hook()
	}
	if task != nil {
		task.Cancel()
	}
}

// Cancelled reports whether Cancel has been called.
func (m *Monitor) Cancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Wait blocks while the pause gate is present, then reports ok = false if
// cancellation was observed either on entry or on wake, ok = true
// otherwise. It is the only blocking point the library itself introduces
// between stages.
func (m *Monitor) Wait() (ok bool) {
	for {
		m.mu.Lock()
		if m.cancelled {
			m.mu.Unlock()
			return false
		}
		ch := m.gateCh
		if ch == nil {
			m.mu.Unlock()
			return true
		}
		m.mu.Unlock()
		<-ch
	}
}

// InstallOnCancel atomically replaces the on-cancel hook. If the monitor is
// already cancelled, hook fires synchronously and immediately — the install
// side always loses the race against an in-flight or prior Cancel, so hook
// fires exactly once regardless of ordering.
func (m *Monitor) InstallOnCancel(hook func()) {
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		if hook != nil {
			hook()
		}
		return
	}
	m.onCancel = hook
	m.mu.Unlock()
}

// InstallTask atomically replaces the wrapped cancelable task. If the
// monitor is currently paused, task.Suspend() is invoked immediately; if
// cancelled, task.Cancel() is invoked immediately. Both calls are made
// after the task is stored and the monitor's lock is released, so a
// concurrent Suspend/Resume/Cancel caller may reach the new task before or
// after them.
func (m *Monitor) InstallTask(task Cancelable) {
	m.mu.Lock()
	m.task = task
	paused := m.gateCh != nil
	cancelled := m.cancelled
	m.mu.Unlock()
	if task == nil {
		return
	}
	if cancelled {
		task.Cancel()
		return
	}
	if paused {
		task.Suspend()
	}
}

// pendingGuard wraps a completion callback so it latches at most once; it
// also arms the monitor's on-cancel hook so cancellation competes in the
// same race as the guarded callback's other callers.
type pendingGuard struct {
	once sync.Once
	fn   func(Result, error)
}

// newPendingGuard returns a single-shot callback wrapping fn, and arms m's
// on-cancel hook to settle the guard with ErrCancelled if m is (or becomes)
// cancelled before some other caller settles it first.
func newPendingGuard(m *Monitor, fn func(Result, error)) func(Result, error) {
	g := &pendingGuard{fn: fn}
	settle := func(v Result, err error) {
		g.once.Do(func() { g.fn(v, err) })
	}
	m.InstallOnCancel(func() { settle(nil, ErrCancelled) })
	return settle
}
