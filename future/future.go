package future

import (
	"context"
	"sync"
)

// Error is a constant error type; string constants of this type are safe
// to compare with errors.Is across wrapped chains.
type Error string

func (e Error) Error() string { return string(e) }

// ErrNilFailure replaces a nil error passed to Fail so a failed future
// never reports success.
const ErrNilFailure = Error("future failed with nil error")

// Waiter is the untyped view of a future, used by combinators that only
// care about completion and failure.
type Waiter interface {
	// Done is closed once the future resolved.
	Done() <-chan struct{}
	// Err returns the failure, or nil if unresolved or succeeded.
	Err() error
	// OnDone registers fn to run on resolution. If already resolved, fn
	// runs immediately on the calling goroutine.
	OnDone(fn func(err error))
}

// Future is a single-assignment result holder.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	value     T
	err       error
	listeners []func(T, error)
}

// New returns an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Finished returns a future already resolved with v.
func Finished[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// Failed returns a future already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Complete resolves the future with v. It returns false if the future was
// already resolved, in which case nothing changes.
func (f *Future[T]) Complete(v T) bool {
	return f.resolve(v, nil)
}

// Fail resolves the future with err. It returns false if the future was
// already resolved.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = ErrNilFailure
	}
	var zero T
	return f.resolve(zero, err)
}

func (f *Future[T]) resolve(v T, err error) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.value = v
	f.err = err
	ls := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, l := range ls {
		l(v, err)
	}
	return true
}

// Done is closed once the future resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future resolved.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the failure of a resolved future. Unresolved futures and
// successful ones return nil.
func (f *Future[T]) Err() error {
	if !f.IsDone() {
		return nil
	}
	return f.err
}

// Get blocks until the future resolves or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Listen registers fn to receive the outcome.
func (f *Future[T]) Listen(fn func(v T, err error)) {
	f.mu.Lock()
	if !f.resolved {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

// OnDone implements Waiter.
func (f *Future[T]) OnDone(fn func(err error)) {
	f.Listen(func(_ T, err error) { fn(err) })
}

// Await blocks until w resolves or ctx is done and returns w's failure or
// the context error.
func Await(ctx context.Context, w Waiter) error {
	if w == nil {
		return nil
	}
	select {
	case <-w.Done():
		return w.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
