// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import (
	"testing"
	"time"

	"github.com/joeycumines/go-promise/workerpool"
	"github.com/stretchr/testify/require"
)

// TestChainArithmetic covers spec scenario 1: resolved(200) -> /10 -> nested
// *2 -> *10 should yield 400.
func TestChainArithmetic(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := Resolved(pool, 200)
	p = p.Then(func(v Result) (Result, error) {
		return v.(int) / 10, nil
	})
	p = p.ThenPromise(func(v Result) (Promise, error) {
		return Resolved(pool, v.(int)*2), nil
	})
	p = p.Then(func(v Result) (Result, error) {
		return v.(int) * 10, nil
	})
	v, err := p.Await()
	require.NoError(t, err)
	require.Equal(t, 400, v)
}

// TestCatchSkippedOnSuccess checks that a Catch stage forwards an upstream
// success unchanged without invoking its handler.
func TestCatchSkippedOnSuccess(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	var catchCalls int
	v, err := Resolved(pool, 1).
		Then(func(v Result) (Result, error) { return v, nil }).
		Catch(func(err error) (Result, error) {
			catchCalls++
			return nil, err
		}).
		Await()
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.Zero(t, catchCalls)
}

// TestCatchInvokedExactlyOnceOnFailure covers §8: for all errors e,
// rejected(e).catch(h) invokes h(e) exactly once.
func TestCatchInvokedExactlyOnceOnFailure(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	sentinel := ErrEmpty
	var catchCalls int
	_, err := Rejected(pool, sentinel).
		Catch(func(err error) (Result, error) {
			catchCalls++
			return "recovered", nil
		}).
		Await()
	require.NoError(t, err)
	require.Equal(t, 1, catchCalls)
}

func TestFinallyPassesThroughResultUnchanged(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	var finallyRan bool
	v, err := Resolved(pool, "value").
		Finally(func() { finallyRan = true }).
		Await()
	require.NoError(t, err)
	require.Equal(t, "value", v)
	require.True(t, finallyRan)
}

func TestFinallyPanicDoesNotChangeResult(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	v, err := Resolved(pool, "value").
		Finally(func() { panic("boom") }).
		Await()
	require.NoError(t, err)
	require.Equal(t, "value", v)
}

// TestCancellationMidChain covers spec scenario 5: a callback-producer
// settling after 250ms feeds a then-callback stage that resolves after
// another 250ms, followed by finally and a final then/catch. Cancelling
// the outermost handle at 400ms must still run finally, and catch must
// observe Cancelled; the final then body must never execute.
func TestCancellationMidChain(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := NewCallback(pool, func(resolve ResolveFunc, reject RejectFunc) {
		go func() {
			time.Sleep(250 * time.Millisecond)
			resolve(200)
		}()
	})

	var finallyRan bool
	var finalThenRan bool
	chain := p.ThenCallback(func(x Result, resolve ResolveFunc, reject RejectFunc) {
		go func() {
			time.Sleep(250 * time.Millisecond)
			resolve(nil)
		}()
	}).Finally(func() {
		finallyRan = true
	}).Then(func(v Result) (Result, error) {
		finalThenRan = true
		return v, nil
	})
	caught := chain.Catch(func(err error) (Result, error) {
		return nil, err
	})

	time.AfterFunc(400*time.Millisecond, func() {
		p.Cancel()
	})

	_, err := caught.Await()
	require.ErrorIs(t, err, ErrCancelled)
	require.True(t, finallyRan)
	require.False(t, finalThenRan)
}

func TestSuspendPausesDownstreamStage(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := Resolved(pool, 1)
	next := p.Then(func(v Result) (Result, error) { return v, nil })
	next.Suspend()

	done := make(chan struct{})
	go func() {
		_, _ = next.Then(func(v Result) (Result, error) { return v, nil }).Await()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("downstream stage ran while suspended")
	case <-time.After(50 * time.Millisecond):
	}
	next.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("downstream stage never ran after Resume")
	}
}
