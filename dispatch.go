package grid

import (
	"context"

	"github.com/sharedcode/grid/future"
)

// EndTx waits for tx's last asynchronous operation and closes it.
func (sc *SharedContext) EndTx(ctx context.Context, tx Tx) error {
	if err := tx.AwaitLastFuture(ctx); err != nil {
		return err
	}
	return tx.Close()
}

// CommitTxAsync commits tx. A transaction that enlisted a single live cache
// with its own commit path is handed to that cache; any other goes through
// the generic commit once its last asynchronous operation finished.
func (sc *SharedContext) CommitTxAsync(ctx context.Context, tx Tx) *future.Future[Tx] {
	if id, ok := tx.SingleCacheID(); ok {
		if c, ok := sc.CacheContext(id); ok && c.Cache != nil {
			return c.Cache.CommitTxAsync(ctx, tx)
		}
	}
	if err := tx.AwaitLastFuture(ctx); err != nil {
		return future.Failed[Tx](err)
	}
	return tx.CommitAsync(ctx)
}

// RollbackTxAsync rolls tx back once its last asynchronous operation
// finished.
func (sc *SharedContext) RollbackTxAsync(ctx context.Context, tx Tx) *future.Future[Tx] {
	if err := tx.AwaitLastFuture(ctx); err != nil {
		return future.Failed[Tx](err)
	}
	return tx.RollbackAsync(ctx)
}
