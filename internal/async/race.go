// Package async runs blocking calls as futures and races them against a
// timer. Whichever settles first wins; the loser's result is discarded.
package async

import (
	"context"
	"errors"
	"time"
)

// ErrTimedOut is returned by Race when the timer settles first.
var ErrTimedOut = errors.New("timed out")

// Future is the eventual result of a call started with Go.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn in its own goroutine and returns its Future.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the call has returned.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call returns or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Race runs fn with a context that is cancelled as soon as the race is
// decided. If fn has not returned after d, Race returns ErrTimedOut and
// abandons the call; a result fn produces later is dropped. A
// cancellation of the parent ctx settles the race with ctx.Err().
func Race[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := Go(callCtx, fn)
	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case <-f.Done():
		return f.val, f.err
	case <-timer.C:
		return zero, ErrTimedOut
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
