// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolSubmitRunsOnNamedQueue(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var observed QueueID
	var ok bool
	p.Submit("custom", func() {
		defer wg.Done()
		observed, ok = p.CurrentQueueID()
	})
	wg.Wait()
	require.True(t, ok)
	require.Equal(t, QueueID("custom"), observed)
}

func TestPoolSubmitStaysOnCurrentQueue(t *testing.T) {
	p := New()
	defer p.Close()

	done := make(chan struct{})
	var nested bool
	p.Submit(Main, func() {
		before, _ := p.CurrentQueueID()
		p.Submit(Main, func() {
			// runs synchronously: same goroutine, same queue
			nested = true
		})
		require.Equal(t, Main, before)
		require.True(t, nested)
		close(done)
	})
	<-done
}

func TestPoolSubmitAfterFires(t *testing.T) {
	p := New()
	defer p.Close()

	done := make(chan struct{})
	start := time.Now()
	p.SubmitAfter(Default, 20*time.Millisecond, func() {
		close(done)
	})
	<-done
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestPoolSubmitAfterCancel(t *testing.T) {
	p := New()
	defer p.Close()

	fired := make(chan struct{}, 1)
	h := p.SubmitAfter(Default, 30*time.Millisecond, func() {
		fired <- struct{}{}
	})
	require.True(t, h.Cancel())
	select {
	case <-fired:
		t.Fatal("cancelled dispatch fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestPoolCurrentQueueIDFalseOutsidePool(t *testing.T) {
	p := New()
	defer p.Close()
	_, ok := p.CurrentQueueID()
	require.False(t, ok)
}
