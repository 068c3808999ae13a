package future

import (
	"context"
	"sync"
)

// Compound AND-composes Waiters. It succeeds only when every constituent
// succeeded. A failure is remembered but the compound keeps waiting for the
// remaining constituents, so it never resolves while one is still running;
// the first failure observed is the one reported.
//
// Constituents are added before MarkInitialized. The compound cannot
// resolve until it is marked initialized.
type Compound struct {
	f *Future[struct{}]

	mu          sync.Mutex
	pending     int
	initialized bool
	firstErr    error
}

// NewCompound returns an empty, uninitialized compound future.
func NewCompound() *Compound {
	return &Compound{f: New[struct{}]()}
}

// Add registers w as a constituent. Nil waiters are ignored. Add panics
// when called after MarkInitialized.
func (c *Compound) Add(w Waiter) {
	if w == nil {
		return
	}
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		panic("future: Add called on an initialized compound")
	}
	c.pending++
	c.mu.Unlock()

	w.OnDone(c.onConstituentDone)
}

func (c *Compound) onConstituentDone(err error) {
	c.mu.Lock()
	c.pending--
	if err != nil && c.firstErr == nil {
		c.firstErr = err
	}
	fire := c.initialized && c.pending == 0
	ferr := c.firstErr
	c.mu.Unlock()

	if fire {
		c.finish(ferr)
	}
}

// MarkInitialized closes the constituent set. If every constituent already
// resolved, the compound resolves now.
func (c *Compound) MarkInitialized() *Compound {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return c
	}
	c.initialized = true
	fire := c.pending == 0
	ferr := c.firstErr
	c.mu.Unlock()

	if fire {
		c.finish(ferr)
	}
	return c
}

// Pending returns the number of constituents not yet resolved.
func (c *Compound) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Compound) finish(err error) {
	if err != nil {
		c.f.Fail(err)
		return
	}
	c.f.Complete(struct{}{})
}

// Done implements Waiter.
func (c *Compound) Done() <-chan struct{} { return c.f.Done() }

// Err implements Waiter.
func (c *Compound) Err() error { return c.f.Err() }

// OnDone implements Waiter.
func (c *Compound) OnDone(fn func(err error)) { c.f.OnDone(fn) }

// IsDone reports whether the compound resolved.
func (c *Compound) IsDone() bool { return c.f.IsDone() }

// Get blocks until the compound resolves or ctx is done.
func (c *Compound) Get(ctx context.Context) error {
	_, err := c.f.Get(ctx)
	return err
}

// All returns an initialized compound over ws.
func All(ws ...Waiter) *Compound {
	c := NewCompound()
	for _, w := range ws {
		c.Add(w)
	}
	return c.MarkInitialized()
}
