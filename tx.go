package grid

import (
	"context"

	"github.com/sharedcode/grid/future"
)

// TxState is a transaction's position in its lifecycle:
// Active -> Preparing -> Committing|RollingBack -> Committed|RolledBack.
type TxState int

const (
	TxActive TxState = iota
	TxPreparing
	TxCommitting
	TxRollingBack
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxPreparing:
		return "preparing"
	case TxCommitting:
		return "committing"
	case TxRollingBack:
		return "rolling back"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// Terminal reports whether s is Committed or RolledBack.
func (s TxState) Terminal() bool {
	return s == TxCommitted || s == TxRolledBack
}

// Tx is the view of a transaction the shared context needs to route its
// completion.
type Tx interface {
	ID() UUID
	// System reports whether this is a system transaction.
	System() bool
	State() TxState
	TopologyVersion() TopologyVersion
	// ActiveCacheIDs lists the enlisted caches in enlistment order.
	ActiveCacheIDs() []int32
	// SingleCacheID returns the cache id when exactly one cache is enlisted.
	SingleCacheID() (int32, bool)
	// AwaitLastFuture blocks until the transaction's last outstanding
	// asynchronous operation finished. The operation's own failure is not
	// reported; only ctx errors are.
	AwaitLastFuture(ctx context.Context) error
	CommitAsync(ctx context.Context) *future.Future[Tx]
	RollbackAsync(ctx context.Context) *future.Future[Tx]
	// Close releases the transaction's resources.
	Close() error
}

// StoreSessionListener observes store sessions opened by transactions.
type StoreSessionListener interface {
	OnSessionStart(ctx context.Context, tx Tx) error
	OnSessionEnd(ctx context.Context, tx Tx, commit bool) error
}
