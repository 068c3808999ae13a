package grid

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sharedcode/grid/future"
)

// Manager is the lifecycle capability set shared by every cache subsystem
// manager. SharedContext drives these calls from a single control goroutine.
type Manager interface {
	// Name identifies the manager in logs and errors.
	Name() string
	// Start is the first call a manager instance receives.
	Start(ctx context.Context, sc *SharedContext) error
	// Stop releases the manager. cancel requests abandoning in-flight work.
	Stop(ctx context.Context, cancel bool) error
	// OnNodeStart runs after every manager started. reconnecting is true
	// when the node rejoins the cluster after a disconnect.
	OnNodeStart(ctx context.Context, reconnecting bool) error
	// OnNodeStop runs before any manager stops.
	OnNodeStop(ctx context.Context, cancel bool) error
	// OnDisconnected signals that the cluster connection is lost.
	// reconnect resolves when the node reconnects.
	OnDisconnected(ctx context.Context, reconnect future.Waiter) error
	// OnReconnected signals a retained manager that the connection is back.
	OnReconnected(ctx context.Context) error
}

// TxManager tracks transactions.
type TxManager interface {
	Manager
	// FinishTxs returns a future resolved when every transaction started on
	// a topology older than topVer finished.
	FinishTxs(topVer TopologyVersion) future.Waiter
	// LockedTopologyVersion returns the topology version pinned by the
	// worker's active transaction, ignoring the transaction ignore.
	LockedTopologyVersion(worker UUID, ignore Tx) (TopologyVersion, bool)
}

// MvccManager tracks explicit locks and atomic updates.
type MvccManager interface {
	Manager
	// FinishExplicitLocks resolves when every explicit lock acquired on a
	// topology older than topVer is released.
	FinishExplicitLocks(topVer TopologyVersion) future.Waiter
	// FinishAtomicUpdates resolves when every atomic update started on a
	// topology older than topVer is done.
	FinishAtomicUpdates(topVer TopologyVersion) future.Waiter
	// LastExplicitLockTopologyVersion returns the topology version of the
	// worker's most recent explicit lock still held.
	LastExplicitLockTopologyVersion(worker UUID) (TopologyVersion, bool)
	// ContextReset discards the worker's lock context.
	ContextReset(worker UUID)
}

// VersionManager issues cache versions.
type VersionManager interface {
	Manager
	Next(topVer TopologyVersion) CacheVersion
}

// DeploymentManager handles peer class deployment. It is rebuilt after
// every disconnect.
type DeploymentManager interface {
	Manager
	Enabled() bool
}

// ExchangeManager runs partition exchange rounds. It is rebuilt after
// every disconnect.
type ExchangeManager interface {
	Manager
	// AffinityReadyFuture returns a future resolved when the assignment for
	// ver is ready, or nil when nothing is pending for ver.
	AffinityReadyFuture(ver TopologyVersion) future.Waiter
	// ReadyTopologyVersion is the latest version whose exchange completed.
	ReadyTopologyVersion() TopologyVersion
}

// AffinityManager holds partition assignments per topology version.
type AffinityManager interface {
	Manager
	// ApplyTopology makes the assignments staged for ver current.
	ApplyTopology(ctx context.Context, ver TopologyVersion) error
	ReadyTopologyVersion() TopologyVersion
}

// IoManager dispatches cache messages.
type IoManager interface {
	Manager
	// RemoveHandlers drops every handler registered for cacheID.
	RemoveHandlers(cacheID int32)
}

// JtaManager binds external two-phase participants to transactions.
type JtaManager interface {
	Manager
	Participants(txID UUID) []TwoPhaseParticipant
	Release(txID UUID)
}

// TwoPhaseParticipant is an external resource committed together with a
// grid transaction.
type TwoPhaseParticipant interface {
	Phase1Commit(ctx context.Context) error
	Phase2Commit(ctx context.Context) error
	Rollback(ctx context.Context, cause error) error
}

// ManagerAdapter implements every Manager lifecycle method as a no-op and
// keeps a reference to the SharedContext. Managers embed it and override
// what they need; an overriding Start must call the adapter's Start.
type ManagerAdapter struct {
	ManagerName string

	shared *SharedContext
	log    *slog.Logger
}

// Name implements Manager.
func (a *ManagerAdapter) Name() string { return a.ManagerName }

// ErrNoSharedContext is returned by Start when no shared context is given.
var ErrNoSharedContext = errors.New("manager started without a shared context")

// Start records sc.
func (a *ManagerAdapter) Start(ctx context.Context, sc *SharedContext) error {
	if sc == nil {
		return ErrNoSharedContext
	}
	a.shared = sc
	a.log = Logger().With("manager", a.ManagerName)
	return nil
}

// Shared returns the SharedContext passed to Start.
func (a *ManagerAdapter) Shared() *SharedContext { return a.shared }

// Log returns the manager's logger.
func (a *ManagerAdapter) Log() *slog.Logger {
	if a.log == nil {
		return Logger().With("manager", a.ManagerName)
	}
	return a.log
}

func (a *ManagerAdapter) Stop(ctx context.Context, cancel bool) error { return nil }

func (a *ManagerAdapter) OnNodeStart(ctx context.Context, reconnecting bool) error { return nil }

func (a *ManagerAdapter) OnNodeStop(ctx context.Context, cancel bool) error { return nil }

func (a *ManagerAdapter) OnDisconnected(ctx context.Context, reconnect future.Waiter) error {
	return nil
}

func (a *ManagerAdapter) OnReconnected(ctx context.Context) error { return nil }
