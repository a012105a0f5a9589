// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package workerpool is a reference Scheduler implementation: one buffered
// goroutine pool per named queue, plus a timer-based delayed-dispatch
// primitive. It has no event loop of its own — each queue is a fixed set of
// worker goroutines draining a buffered channel of work items.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-promise"
)

// QueueID names a worker pool. Main and Default are reserved identities a
// Pool always creates; callers may submit to arbitrary additional names,
// which are created lazily on first use if PoolOption hasn't already sized
// them.
type QueueID = promise.QueueID

const (
	// Main is the queue conventionally reserved for a consumer's primary
	// work (analogous to a UI/foreground pool).
	Main = promise.Main
	// Default is the queue stages use when no queue is specified.
	Default = promise.Default
)

// CancelHandle cancels a delayed dispatch scheduled via SubmitAfter. Calling
// it after the work has already started running has no effect.
type CancelHandle = promise.CancelHandle

// Scheduler is the Scheduler Interface (SI): submit work to a named pool,
// submit delayed work, and identify the calling goroutine's pool, if any.
// Pool implements this (and promise.Scheduler, which it is a type alias of).
type Scheduler = promise.Scheduler

var _ Scheduler = (*Pool)(nil)

// PoolOption configures a Pool at construction.
type PoolOption interface {
	apply(*poolOptions)
}

type poolOptions struct {
	workers    int
	queueDepth int
	sizes      map[QueueID]int
}

type poolOptionFunc func(*poolOptions)

func (f poolOptionFunc) apply(o *poolOptions) { f(o) }

// WithWorkers sets the default number of worker goroutines per queue
// (queues created on first use, or reserved queues not otherwise sized).
func WithWorkers(n int) PoolOption {
	return poolOptionFunc(func(o *poolOptions) {
		if n > 0 {
			o.workers = n
		}
	})
}

// WithQueueDepth sets the default buffered channel depth per queue.
func WithQueueDepth(n int) PoolOption {
	return poolOptionFunc(func(o *poolOptions) {
		if n >= 0 {
			o.queueDepth = n
		}
	})
}

// WithQueueWorkers sizes a specific, named queue's worker count, overriding
// the default for that queue only. The queue is created eagerly by New.
func WithQueueWorkers(queue QueueID, n int) PoolOption {
	return poolOptionFunc(func(o *poolOptions) {
		if o.sizes == nil {
			o.sizes = make(map[QueueID]int)
		}
		o.sizes[queue] = n
	})
}

func resolvePoolOptions(opts []PoolOption) poolOptions {
	o := poolOptions{workers: 4, queueDepth: 64}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	return o
}

type queue struct {
	work chan func()
	stop chan struct{}
	wg   sync.WaitGroup
}

// goroutineQueues maps a worker goroutine's ID to the QueueID it belongs to,
// grounded on the teacher's goroutine-identity trick (eventloop/loop.go:
// getGoroutineID/isLoopThread) generalized from "one loop thread" to "N
// named worker pools".
type goroutineQueues struct {
	sync.Map // goroutine id (uint64) -> QueueID
}

// Pool is the reference Scheduler: a fixed set of named, buffered-channel
// worker pools (grounded on the generic worker-pool idiom of
// vishal-sharma-001's internal/pool.WorkerPool and abcxyz-pkg's workerpool),
// plus time.AfterFunc-based delayed dispatch.
type Pool struct {
	opts   poolOptions
	mu     sync.Mutex
	queues map[QueueID]*queue
	ids    goroutineQueues
	closed bool
}

// New starts a Pool with the reserved Main and Default queues already
// running, plus any queue named via WithQueueWorkers.
func New(opts ...PoolOption) *Pool {
	o := resolvePoolOptions(opts)
	p := &Pool{
		opts:   o,
		queues: make(map[QueueID]*queue),
	}
	p.queueFor(Main)
	p.queueFor(Default)
	for name := range o.sizes {
		p.queueFor(name)
	}
	return p
}

func (p *Pool) queueFor(id QueueID) *queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.queues[id]; ok {
		return q
	}
	n := p.opts.workers
	if sz, ok := p.opts.sizes[id]; ok && sz > 0 {
		n = sz
	}
	q := &queue{
		work: make(chan func(), p.opts.queueDepth),
		stop: make(chan struct{}),
	}
	p.queues[id] = q
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go p.runWorker(id, q)
	}
	return q
}

func (p *Pool) runWorker(id QueueID, q *queue) {
	defer q.wg.Done()
	gid := goroutineID()
	p.ids.Store(gid, id)
	defer p.ids.Delete(gid)
	for {
		select {
		case work, ok := <-q.work:
			if !ok {
				return
			}
			work()
		case <-q.stop:
			for {
				select {
				case work := <-q.work:
					work()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues work on the named queue. If the calling goroutine already
// belongs to that queue, work runs synchronously instead of being
// re-enqueued — the "stay on current pool" optimization (spec §4.1):
// same-queue submission behaves as a synchronous fast path rather than
// risking self-deadlock against a saturated buffered channel.
func (p *Pool) Submit(id QueueID, work func()) {
	if cur, ok := p.CurrentQueueID(); ok && cur == id {
		work()
		return
	}
	q := p.queueFor(id)
	q.work <- work
}

type timerHandle struct {
	timer     *time.Timer
	fired     atomic.Bool
	cancelled atomic.Bool
}

func (h *timerHandle) Cancel() bool {
	if h.fired.Load() {
		return false
	}
	if !h.cancelled.CompareAndSwap(false, true) {
		return false
	}
	return h.timer.Stop()
}

// SubmitAfter schedules work to run on the named queue after delay, via
// time.AfterFunc — the idiomatic stdlib substitute for the teacher's
// epoll-tied timer heap, since this package has no event loop of its own to
// tie a timer wheel to (see DESIGN.md).
func (p *Pool) SubmitAfter(id QueueID, delay time.Duration, work func()) CancelHandle {
	h := &timerHandle{}
	h.timer = time.AfterFunc(delay, func() {
		if h.cancelled.Load() {
			return
		}
		h.fired.Store(true)
		p.Submit(id, work)
	})
	return h
}

// CurrentQueueID reports the QueueID of the calling goroutine, if it is one
// of this Pool's own workers.
func (p *Pool) CurrentQueueID() (QueueID, bool) {
	v, ok := p.ids.Load(goroutineID())
	if !ok {
		return "", false
	}
	return v.(QueueID), true
}

// Close stops every queue's workers after their buffered work drains, and
// waits for them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	queues := make([]*queue, 0, len(p.queues))
	for _, q := range p.queues {
		queues = append(queues, q)
	}
	p.mu.Unlock()

	for _, q := range queues {
		close(q.stop)
		q.wg.Wait()
	}
}

// goroutineID returns the current goroutine's numeric ID, grounded on
// eventloop/loop.go's getGoroutineID (parses the "goroutine N [...]" header
// runtime.Stack produces for the calling goroutine alone).
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
