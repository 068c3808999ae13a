package grid

import (
	"context"

	"github.com/sharedcode/grid/future"
)

// PartitionReleaseFuture returns the drain barrier of a partition exchange
// to topVer: it resolves once explicit locks, transactions and atomic
// updates started on older topologies are all finished. When one drain
// fails the barrier still waits for the other two before reporting the
// first failure, so no drain is left with a dangling listener.
func (sc *SharedContext) PartitionReleaseFuture(topVer TopologyVersion) *future.Compound {
	set := sc.set()
	f := future.NewCompound()
	f.Add(set.mvcc.FinishExplicitLocks(topVer))
	f.Add(set.tx.FinishTxs(topVer))
	f.Add(set.mvcc.FinishAtomicUpdates(topVer))
	return f.MarkInitialized()
}

// NextAffinityReadyFuture returns a future resolved when the assignment of
// the topology after curVer is known. It returns nil when curVer is
// NoTopologyVersion, and an already completed future when the exchange
// manager has nothing pending for that version.
func (sc *SharedContext) NextAffinityReadyFuture(curVer TopologyVersion) future.Waiter {
	if curVer.IsNone() {
		return nil
	}
	nextVer := curVer.Next()
	if f := sc.Exchange().AffinityReadyFuture(nextVer); f != nil {
		return f
	}
	return future.Finished(nextVer)
}

// LockedTopologyVersion returns the topology version pinned by the calling
// worker: the one of its active transaction other than ignore, else the
// one of its last explicit lock. The worker is read from ctx; a context
// without a worker pins nothing.
func (sc *SharedContext) LockedTopologyVersion(ctx context.Context, ignore Tx) (TopologyVersion, bool) {
	worker, ok := WorkerFromContext(ctx)
	if !ok {
		return NoTopologyVersion, false
	}
	set := sc.set()
	if v, ok := set.tx.LockedTopologyVersion(worker, ignore); ok {
		return v, true
	}
	return set.mvcc.LastExplicitLockTopologyVersion(worker)
}

// TxContextReset discards the calling worker's lock context.
func (sc *SharedContext) TxContextReset(ctx context.Context) {
	if worker, ok := WorkerFromContext(ctx); ok {
		sc.Mvcc().ContextReset(worker)
	}
}
