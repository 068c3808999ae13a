package grid

import "context"

type workerKey struct{}

// WithWorker returns a context carrying the identity of the logical worker
// performing cache operations. Lock and transaction pins are keyed by this
// identity instead of by goroutine, so it must be threaded through every
// call of one logical operation.
func WithWorker(ctx context.Context, id UUID) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// NewWorkerContext returns ctx carrying a freshly generated worker identity.
func NewWorkerContext(ctx context.Context) (context.Context, UUID) {
	id := NewUUID()
	return WithWorker(ctx, id), id
}

// WorkerFromContext returns the worker identity carried by ctx.
func WorkerFromContext(ctx context.Context) (UUID, bool) {
	id, ok := ctx.Value(workerKey{}).(UUID)
	return id, ok
}
