// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

// Await blocks the calling goroutine until the chain settles, then returns
// its value or error. Grounded on eventloop/promise.go's ToChannel (a
// buffered, size-1 channel pre-filled if already settled), generalized to
// both the success and failure arm.
//
// Must not be called from inside a stage body running on the same queue it
// would block the chain's next stage on — this can deadlock a
// single-worker queue. The library documents this but does not detect it.
func (p Promise) Await() (Result, error) {
	p.core.cancelAutorun()
	done := make(chan struct{})
	var v Result
	var err error
	p.core.subscribe(func(value Result, e error) {
		v, err = value, e
		close(done)
	})
	<-done
	return v, err
}
