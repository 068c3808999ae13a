// Package txn implements grid transactions and the transaction manager
// that tracks them for partition exchanges.
package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/future"
)

var _ grid.TxManager = (*Manager)(nil)

// TxOptions configures a new transaction.
type TxOptions struct {
	// System marks a transaction over a system cache.
	System bool
	// TopologyVersion pins the transaction to a topology. NoTopologyVersion
	// or the zero value means the worker's pinned topology if any, else the
	// last exchanged one.
	TopologyVersion grid.TopologyVersion
	// CommitMaxDuration bounds commit and rollback. Zero means no bound
	// beyond the caller's context.
	CommitMaxDuration time.Duration
}

// Manager is the transaction manager.
type Manager struct {
	grid.ManagerAdapter
	maxParallel int

	mu       sync.Mutex
	active   map[grid.UUID]*Transaction
	byWorker map[grid.UUID]*Transaction
}

// NewManager returns a Manager whose generic commit applies to at most
// maxParallel caches at once; zero or less means no limit.
func NewManager(maxParallel int) *Manager {
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "tx"},
		maxParallel:    maxParallel,
		active:         make(map[grid.UUID]*Transaction),
		byWorker:       make(map[grid.UUID]*Transaction),
	}
}

// Begin starts a transaction for the worker carried by ctx. A worker runs
// at most one transaction at a time.
func (m *Manager) Begin(ctx context.Context, opts TxOptions) (*Transaction, error) {
	sc := m.Shared()
	if sc == nil {
		return nil, errors.New("transaction manager is not started")
	}
	worker, hasWorker := grid.WorkerFromContext(ctx)

	topVer := opts.TopologyVersion
	if topVer == (grid.TopologyVersion{}) || topVer.IsNone() {
		if v, ok := sc.LockedTopologyVersion(ctx, nil); ok {
			topVer = v
		} else {
			topVer = sc.Exchange().ReadyTopologyVersion()
		}
	}

	t := &Transaction{
		m:         m,
		sc:        sc,
		id:        grid.NewUUID(),
		worker:    worker,
		hasWorker: hasWorker,
		system:    opts.System,
		topVer:    topVer,
		maxTime:   opts.CommitMaxDuration,
		state:     grid.TxActive,
		settled:   future.New[struct{}](),
		done:      future.New[struct{}](),
	}

	m.mu.Lock()
	if hasWorker {
		if cur, ok := m.byWorker[worker]; ok {
			m.mu.Unlock()
			return nil, grid.Error{
				Code:     grid.InvalidTxState,
				Err:      fmt.Errorf("worker %v already runs transaction %v", worker, cur.id),
				UserData: cur.id,
			}
		}
		m.byWorker[worker] = t
	}
	m.active[t.id] = t
	m.mu.Unlock()

	m.Log().Debug("transaction started", "tx", t.id, "topology", topVer, "system", opts.System)
	return t, nil
}

func (m *Manager) remove(t *Transaction) {
	m.mu.Lock()
	delete(m.active, t.id)
	if t.hasWorker && m.byWorker[t.worker] == t {
		delete(m.byWorker, t.worker)
	}
	m.mu.Unlock()
	t.done.Complete(struct{}{})
}

// Transaction returns the active transaction with the given id.
func (m *Manager) Transaction(id grid.UUID) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[id]
	return t, ok
}

// ActiveCount returns the number of transactions not yet closed.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// FinishTxs returns a future resolved when every transaction started on a
// topology older than topVer is closed.
func (m *Manager) FinishTxs(topVer grid.TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ws []future.Waiter
	for _, t := range m.active {
		if t.topVer.Before(topVer) {
			ws = append(ws, t.done)
		}
	}
	return future.All(ws...)
}

// LockedTopologyVersion returns the topology of worker's active
// transaction unless that transaction is ignore.
func (m *Manager) LockedTopologyVersion(worker grid.UUID, ignore grid.Tx) (grid.TopologyVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byWorker[worker]
	if !ok || (ignore != nil && grid.Tx(t) == ignore) {
		return grid.NoTopologyVersion, false
	}
	return t.topVer, true
}

// Stop rolls back and closes every active transaction.
func (m *Manager) Stop(ctx context.Context, cancel bool) error {
	m.mu.Lock()
	txs := make([]*Transaction, 0, len(m.active))
	for _, t := range m.active {
		txs = append(txs, t)
	}
	m.mu.Unlock()

	var errs []error
	for _, t := range txs {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
