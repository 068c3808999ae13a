// Package mvcc tracks explicit locks and in-flight atomic updates so a
// partition exchange can wait for the ones started on older topologies.
package mvcc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/future"
)

var _ grid.MvccManager = (*Manager)(nil)

// releaseParallelism caps concurrent unlocks when the node stops.
const releaseParallelism = 8

// ErrNoWorker is returned when an explicit lock is requested from a
// context that carries no worker identity.
var ErrNoWorker = errors.New("mvcc: context carries no worker")

// Manager is the lock and MVCC manager of a node.
type Manager struct {
	grid.ManagerAdapter
	locker Locker
	ttl    time.Duration

	mu      sync.Mutex
	holds   map[holdKey]*hold
	handles map[*Lock]struct{}
	updates map[*AtomicUpdate]struct{}

	// pins lists each worker's live locks in acquisition order; the last
	// one pins the worker's topology version.
	pins map[grid.UUID][]*Lock
}

// NewManager returns a Manager keeping explicit locks in locker for at
// most ttl.
func NewManager(locker Locker, ttl time.Duration) *Manager {
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "mvcc"},
		locker:         locker,
		ttl:            ttl,
		holds:          make(map[holdKey]*hold),
		handles:        make(map[*Lock]struct{}),
		updates:        make(map[*AtomicUpdate]struct{}),
		pins:           make(map[grid.UUID][]*Lock),
	}
}

type holdKey struct {
	key   string
	owner grid.UUID
}

// hold is a key held in the locker by one worker. A worker re-locking a
// key it holds shares the hold; the key is unlocked when the last Lock on
// it is released.
type hold struct {
	holdKey
	topVer grid.TopologyVersion
	refs   int
	done   *future.Future[struct{}]
}

// Lock is an explicit lock held by a worker.
type Lock struct {
	m        *Manager
	h        *hold
	topVer   grid.TopologyVersion
	released bool
}

// Key returns the locked key.
func (l *Lock) Key() string { return l.h.key }

// Owner returns the worker holding the lock.
func (l *Lock) Owner() grid.UUID { return l.h.owner }

// TopologyVersion returns the topology the lock was acquired on.
func (l *Lock) TopologyVersion() grid.TopologyVersion { return l.topVer }

// Release gives the lock up. The key is unlocked once every Lock the
// worker took on it is released. Releasing twice is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	m := l.m
	m.mu.Lock()
	if l.released {
		m.mu.Unlock()
		return nil
	}
	l.released = true
	delete(m.handles, l)
	m.unpin(l)
	h := l.h
	h.refs--
	if h.refs > 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.holds, h.holdKey)
	m.mu.Unlock()

	err := m.locker.Unlock(ctx, h.key, h.owner)
	h.done.Complete(struct{}{})
	return err
}

// unpin drops l from its owner's pins. Callers hold m.mu.
func (m *Manager) unpin(l *Lock) {
	owner := l.h.owner
	ps := m.pins[owner]
	if i := slices.Index(ps, l); i >= 0 {
		ps = slices.Delete(ps, i, i+1)
	}
	if len(ps) == 0 {
		delete(m.pins, owner)
		return
	}
	m.pins[owner] = ps
}

// LockExplicit acquires key on behalf of the worker carried by ctx and pins
// topVer as that worker's topology version while the lock is held. A
// worker may lock a key it already holds; each Lock must be released.
// A worker acquires and releases its locks sequentially.
func (m *Manager) LockExplicit(ctx context.Context, key string, topVer grid.TopologyVersion) (*Lock, error) {
	worker, ok := grid.WorkerFromContext(ctx)
	if !ok {
		return nil, ErrNoWorker
	}
	ok, owner, err := m.locker.Lock(ctx, key, worker, m.ttl)
	if err != nil {
		return nil, grid.Error{Code: grid.LockAcquisitionFailure, Err: fmt.Errorf("lock %q: %w", key, err), UserData: key}
	}
	if !ok {
		return nil, grid.Error{
			Code:     grid.LockAcquisitionFailure,
			Err:      fmt.Errorf("key %q is locked by worker %v", key, owner),
			UserData: key,
		}
	}

	k := holdKey{key: key, owner: worker}
	m.mu.Lock()
	h, held := m.holds[k]
	if !held {
		h = &hold{holdKey: k, topVer: topVer, done: future.New[struct{}]()}
		m.holds[k] = h
	}
	h.refs++
	l := &Lock{m: m, h: h, topVer: topVer}
	m.handles[l] = struct{}{}
	m.pins[worker] = append(m.pins[worker], l)
	m.mu.Unlock()
	m.Log().Debug("explicit lock acquired", "key", key, "topology", topVer, "reentrant", held)
	return l, nil
}

// AtomicUpdate is an in-flight non-transactional update.
type AtomicUpdate struct {
	m      *Manager
	topVer grid.TopologyVersion
	done   *future.Future[struct{}]
}

// BeginAtomicUpdate registers an update mapped on topVer.
func (m *Manager) BeginAtomicUpdate(topVer grid.TopologyVersion) *AtomicUpdate {
	u := &AtomicUpdate{m: m, topVer: topVer, done: future.New[struct{}]()}
	m.mu.Lock()
	m.updates[u] = struct{}{}
	m.mu.Unlock()
	return u
}

// Done marks the update finished.
func (u *AtomicUpdate) Done() {
	u.m.mu.Lock()
	delete(u.m.updates, u)
	u.m.mu.Unlock()
	u.done.Complete(struct{}{})
}

// FinishExplicitLocks returns a future resolved when every explicit lock
// acquired on a topology older than topVer is released.
func (m *Manager) FinishExplicitLocks(topVer grid.TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ws []future.Waiter
	for _, h := range m.holds {
		if h.topVer.Before(topVer) {
			ws = append(ws, h.done)
		}
	}
	return future.All(ws...)
}

// FinishAtomicUpdates returns a future resolved when every atomic update
// mapped on a topology older than topVer is done.
func (m *Manager) FinishAtomicUpdates(topVer grid.TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ws []future.Waiter
	for u := range m.updates {
		if u.topVer.Before(topVer) {
			ws = append(ws, u.done)
		}
	}
	return future.All(ws...)
}

// LastExplicitLockTopologyVersion returns the topology of the most recent
// explicit lock worker still holds.
func (m *Manager) LastExplicitLockTopologyVersion(worker grid.UUID) (grid.TopologyVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.pins[worker]
	if len(ps) == 0 {
		return grid.NoTopologyVersion, false
	}
	return ps[len(ps)-1].topVer, true
}

// ContextReset forgets worker's lock pin. Its locks stay held.
func (m *Manager) ContextReset(worker grid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pins, worker)
}

// Counts returns the number of keys held through explicit locks and the
// number of atomic updates in flight.
func (m *Manager) Counts() (locks int, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holds), len(m.updates)
}

// Stop releases every live explicit lock so no key outlives the node.
func (m *Manager) Stop(ctx context.Context, cancel bool) error {
	m.mu.Lock()
	locks := make([]*Lock, 0, len(m.handles))
	for l := range m.handles {
		locks = append(locks, l)
	}
	m.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	// A failed unlock must not cancel the others, so failures are
	// collected instead of returned to the runner.
	err := grid.ForEach(ctx, releaseParallelism, locks, func(ctx context.Context, l *Lock) error {
		if err := l.Release(ctx); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
