// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import "sync"

// SettledResult is one member's outcome in an AllSettled result slice,
// mirroring the ES2024 Promise.allSettled status/value/reason shape.
type SettledResult struct {
	Fulfilled bool
	Value     Result
	Err       error
}

// AggregateTask fans suspend/resume/cancel out to a fixed set of member
// monitors. It is installed as the wrapped task of an aggregator's own
// parent monitor, so cancelling the aggregate promise cancels every member
// (and vice versa for lifecycle control), without merging the member
// chains' monitors into one (spec §4.8).
type AggregateTask struct {
	members []*Monitor
}

// NewAggregateTask builds an AggregateTask over the given monitors.
func NewAggregateTask(members []*Monitor) *AggregateTask {
	return &AggregateTask{members: members}
}

func (a *AggregateTask) Suspend() {
	for _, m := range a.members {
		m.Suspend()
	}
}

func (a *AggregateTask) Resume() {
	for _, m := range a.members {
		m.Resume()
	}
}

func (a *AggregateTask) Cancel() {
	for _, m := range a.members {
		m.Cancel()
	}
}

// newAggregateParent builds the parent Promise every aggregator returns:
// a fresh monitor, an AggregateTask fanning lifecycle ops to every member's
// monitor installed as its task, and every member's autorun cancelled since
// the aggregator now drives them.
func newAggregateParent(scheduler Scheduler, members []Promise) (*promiseCore, func(Result, error)) {
	monitors := make([]*Monitor, len(members))
	for i, m := range members {
		m.core.cancelAutorun()
		monitors[i] = m.core.monitor
	}
	monitor := NewMonitor()
	monitor.InstallTask(NewAggregateTask(monitors))

	core := &promiseCore{monitor: monitor, scheduler: scheduler, queue: Default}
	core.bodyOnce.Do(func() {})
	complete := core.settle
	return core, complete
}

// All resolves with the ordered values of every member, in construction
// order regardless of completion order. Empty members resolves with an
// empty slice. The first member failure rejects the parent immediately;
// other members continue running but their eventual results are
// discarded.
func All(scheduler Scheduler, members []Promise) Promise {
	if len(members) == 0 {
		return Resolved(scheduler, []Result{})
	}
	core, complete := newAggregateParent(scheduler, members)

	values := make([]Result, len(members))
	var mu sync.Mutex
	remaining := len(members)
	var rejected bool

	for i, m := range members {
		i := i
		m.core.subscribe(func(v Result, err error) {
			mu.Lock()
			if rejected {
				mu.Unlock()
				return
			}
			if err != nil {
				rejected = true
				mu.Unlock()
				complete(nil, err)
				return
			}
			values[i] = v
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				complete(values, nil)
			}
		})
	}
	return Promise{core: core}
}

// AllSettled resolves with one SettledResult per member, ordered by
// construction order, once every member has settled. It never rejects.
func AllSettled(scheduler Scheduler, members []Promise) Promise {
	if len(members) == 0 {
		return Resolved(scheduler, []SettledResult{})
	}
	core, complete := newAggregateParent(scheduler, members)

	results := make([]SettledResult, len(members))
	var mu sync.Mutex
	remaining := len(members)

	for i, m := range members {
		i := i
		m.core.subscribe(func(v Result, err error) {
			mu.Lock()
			if err != nil {
				results[i] = SettledResult{Fulfilled: false, Err: err}
			} else {
				results[i] = SettledResult{Fulfilled: true, Value: v}
			}
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				complete(results, nil)
			}
		})
	}
	return Promise{core: core}
}

// Race settles with whichever member settles first — its value or error
// becomes the parent's result. Other members continue but are irrelevant.
// Empty members rejects with ErrEmpty.
func Race(scheduler Scheduler, members []Promise) Promise {
	if len(members) == 0 {
		return Rejected(scheduler, ErrEmpty)
	}
	core, complete := newAggregateParent(scheduler, members)

	var once sync.Once
	for _, m := range members {
		m.core.subscribe(func(v Result, err error) {
			once.Do(func() { complete(v, err) })
		})
	}
	return Promise{core: core}
}

// Any settles with the first member to fulfill. If every member rejects,
// it rejects with an *AggregateError whose Errors preserve member
// construction order. Empty members rejects with ErrEmpty.
func Any(scheduler Scheduler, members []Promise) Promise {
	if len(members) == 0 {
		return Rejected(scheduler, ErrEmpty)
	}
	core, complete := newAggregateParent(scheduler, members)

	errs := make([]error, len(members))
	var mu sync.Mutex
	remaining := len(members)
	var fulfilled bool

	for i, m := range members {
		i := i
		m.core.subscribe(func(v Result, err error) {
			mu.Lock()
			if fulfilled {
				mu.Unlock()
				return
			}
			if err == nil {
				fulfilled = true
				mu.Unlock()
				complete(v, nil)
				return
			}
			errs[i] = err
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				complete(nil, &AggregateError{Errors: errs})
			}
		})
	}
	return Promise{core: core}
}
