package txn

import (
	"context"
	"sync/atomic"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/future"
)

var _ grid.CacheOperations = (*LocalCache)(nil)

// ApplyFunc writes (commit true) or discards the transaction's changes to
// one cache.
type ApplyFunc func(ctx context.Context, tx grid.Tx, commit bool) error

// LocalCache is the transaction side of a cache held on this node. It
// commits single-cache transactions itself, skipping the parallel fan-out
// of the generic path.
type LocalCache struct {
	id    int32
	apply ApplyFunc

	localCommits atomic.Int64
}

// NewLocalCache returns the transaction operations of cache id. A nil
// apply accepts every transaction.
func NewLocalCache(id int32, apply ApplyFunc) *LocalCache {
	return &LocalCache{id: id, apply: apply}
}

// ApplyTx implements grid.CacheOperations.
func (c *LocalCache) ApplyTx(ctx context.Context, tx grid.Tx, commit bool) error {
	if c.apply == nil {
		return nil
	}
	return c.apply(ctx, tx, commit)
}

// CommitTxAsync commits tx, which enlisted only this cache.
func (c *LocalCache) CommitTxAsync(ctx context.Context, tx grid.Tx) *future.Future[grid.Tx] {
	if err := tx.AwaitLastFuture(ctx); err != nil {
		return future.Failed[grid.Tx](err)
	}
	t, ok := tx.(*Transaction)
	if !ok {
		return tx.CommitAsync(ctx)
	}
	c.localCommits.Add(1)
	return t.commitAsync(ctx, func(ctx context.Context) error {
		return c.ApplyTx(ctx, t, true)
	})
}

// LocalCommits returns the number of transactions committed through this
// cache's own path.
func (c *LocalCache) LocalCommits() int64 {
	return c.localCommits.Load()
}
