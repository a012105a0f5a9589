// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/joeycumines/go-promise/workerpool"
	"github.com/stretchr/testify/require"
)

func TestResolvedAwait(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	v, err := Resolved(pool, 42).Await()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestRejectedAwait(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	sentinel := errors.New("boom")
	_, err := Rejected(pool, sentinel).Await()
	require.ErrorIs(t, err, sentinel)
}

func TestNewThrowingRunsBodyAndSettles(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := NewThrowing(pool, func() (Result, error) {
		return "hi", nil
	})
	v, err := p.Await()
	require.NoError(t, err)
	require.Equal(t, "hi", v)
}

func TestNewCallbackFirstSettlementWins(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := NewCallback(pool, func(resolve ResolveFunc, reject RejectFunc) {
		go func() {
			time.Sleep(250 * time.Millisecond)
			resolve(200)
		}()
		reject(errors.New("E"))
	})
	var thenRan, catchRan bool
	p.Then(func(v Result) (Result, error) {
		thenRan = true
		require.Equal(t, 200, v)
		return v, nil
	}).Catch(func(err error) (Result, error) {
		catchRan = true
		return nil, err
	})
	// NewCallback settles on the FIRST caller: reject() runs synchronously
	// before resolve's delayed goroutine, so .catch observes "E", not 200.
	_, err := p.Await()
	require.Error(t, err)
	require.Equal(t, "E", err.Error())
	require.False(t, thenRan)
	_ = catchRan
}

func TestNewCancelableInstallsTask(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	task := &fakeTask{}
	started := make(chan struct{})
	release := make(chan struct{})
	p := NewCancelable(pool, func(resolve ResolveFunc, reject RejectFunc, slot TaskSlot) {
		slot.Set(task)
		close(started)
		go func() {
			<-release
			resolve(1)
		}()
	})
	// let the deferred autorun start the body (nothing is chained/awaited yet).
	<-started
	p.Cancel()
	require.Equal(t, 1, task.cancelled)
	close(release)
}

func TestAutorunFiresWhenNeverChained(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	ran := make(chan struct{}, 1)
	NewThrowing(pool, func() (Result, error) {
		ran <- struct{}{}
		return nil, nil
	})
	select {
	case <-ran:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("autorun never fired for unchained promise")
	}
}

func TestAutorunCancelledWhenChained(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	var calls int
	p := NewThrowing(pool, func() (Result, error) {
		calls++
		return 1, nil
	})
	v, err := p.Then(func(v Result) (Result, error) { return v, nil }).Await()
	require.NoError(t, err)
	require.Equal(t, 1, v)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, calls)
}

func TestTimeoutSettlesTimedOut(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := NewThrowing(pool, func() (Result, error) {
		time.Sleep(300 * time.Millisecond)
		return 1, nil
	}, WithTimeout(100*time.Millisecond))
	_, err := p.Catch(func(err error) (Result, error) {
		return nil, err
	}).Await()
	require.ErrorIs(t, err, ErrTimedOut)
}

func TestRetryConvergesOnThirdAttempt(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	counter := 2
	p := NewThrowing(pool, func() (Result, error) {
		if counter > 0 {
			counter--
			return nil, errors.New("fail")
		}
		return "done1", nil
	}, WithRetry(2))
	v, err := p.Await()
	require.NoError(t, err)
	require.Equal(t, "done1", v)
}

func TestRetryExhaustionForwardsLastError(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	attempts := 0
	p := NewThrowing(pool, func() (Result, error) {
		attempts++
		return nil, errors.New("always fails")
	}, WithRetry(2))
	_, err := p.Await()
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

// TestThrowingGoexitSettlesErrGoexit covers spec §4.3 (ADD): a body that
// exits via runtime.Goexit() settles the stage with ErrGoexit instead of
// hanging forever.
func TestThrowingGoexitSettlesErrGoexit(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := NewThrowing(pool, func() (Result, error) {
		runtime.Goexit()
		panic("unreachable")
	})
	_, err := p.Await()
	require.ErrorIs(t, err, ErrGoexit)
}

// TestCallbackGoexitSettlesErrGoexit covers the same contract for the
// callback-style constructors (NewCallback/NewCancelable and their Then/Catch
// counterparts all share withRetryAsync).
func TestCallbackGoexitSettlesErrGoexit(t *testing.T) {
	pool := workerpool.New()
	defer pool.Close()

	p := NewCallback(pool, func(resolve ResolveFunc, reject RejectFunc) {
		runtime.Goexit()
	})
	_, err := p.Await()
	require.ErrorIs(t, err, ErrGoexit)
}
