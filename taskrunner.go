package grid

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner fans tasks out over an errgroup. The first failing task
// cancels the context handed to the others; Wait returns that failure.
type TaskRunner struct {
	eg  *errgroup.Group
	ctx context.Context
}

// NewTaskRunner returns a runner bound to ctx. A positive limit caps the
// number of tasks in flight; Go blocks while the cap is reached.
func NewTaskRunner(ctx context.Context, limit int) *TaskRunner {
	eg, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	return &TaskRunner{eg: eg, ctx: gctx}
}

// Go starts task with the runner's context.
func (tr *TaskRunner) Go(task func(ctx context.Context) error) {
	tr.eg.Go(func() error { return task(tr.ctx) })
}

// Wait blocks until every task returned.
func (tr *TaskRunner) Wait() error {
	return tr.eg.Wait()
}

// ForEach runs fn over items with at most limit calls in flight and
// returns the first error.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) error {
	tr := NewTaskRunner(ctx, limit)
	for _, it := range items {
		tr.Go(func(ctx context.Context) error { return fn(ctx, it) })
	}
	return tr.Wait()
}
