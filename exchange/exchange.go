// Package exchange runs partition map exchanges: on every topology change
// it drains the operations started on older topologies, publishes the new
// affinity and releases the waiters of that version.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/future"
	"github.com/sharedcode/grid/metrics"
)

var _ grid.ExchangeManager = (*Manager)(nil)

var errDisconnected = grid.Error{Code: grid.Disconnected, Err: errors.New("node disconnected before the exchange finished")}

// Manager is the partition exchange manager. Its pending futures belong to
// one cluster session; OnDisconnected fails them and the instance is
// replaced on reconnect.
type Manager struct {
	grid.ManagerAdapter
	timeout time.Duration

	round sync.Mutex

	mu      sync.Mutex
	ready   grid.TopologyVersion
	pending map[grid.TopologyVersion]*future.Future[grid.TopologyVersion]
	closed  bool
}

// NewManager returns a Manager whose rounds wait at most timeout for the
// partition release barrier; zero waits without limit.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "exchange"},
		timeout:        timeout,
		ready:          grid.NoTopologyVersion,
		pending:        make(map[grid.TopologyVersion]*future.Future[grid.TopologyVersion]),
	}
}

// Start binds the manager and opens a new session.
func (m *Manager) Start(ctx context.Context, sc *grid.SharedContext) error {
	if err := m.ManagerAdapter.Start(ctx, sc); err != nil {
		return err
	}
	m.mu.Lock()
	m.closed = false
	m.mu.Unlock()
	return nil
}

// AffinityReadyFuture returns a future resolved when the affinity of
// topVer is published, or nil when it already is.
func (m *Manager) AffinityReadyFuture(topVer grid.TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready.IsNone() && !m.ready.Before(topVer) {
		return nil
	}
	if m.closed {
		return future.Failed[grid.TopologyVersion](errDisconnected)
	}
	f, ok := m.pending[topVer]
	if !ok {
		f = future.New[grid.TopologyVersion]()
		m.pending[topVer] = f
	}
	return f
}

// ReadyTopologyVersion returns the last version whose exchange finished.
func (m *Manager) ReadyTopologyVersion() grid.TopologyVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// OnTopologyChanged runs the exchange to topVer. Rounds run one at a time.
func (m *Manager) OnTopologyChanged(ctx context.Context, topVer grid.TopologyVersion) error {
	m.round.Lock()
	defer m.round.Unlock()

	start := time.Now()
	err := m.exchange(ctx, topVer)
	metrics.ExchangeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExchangeRounds.WithLabelValues("failed").Inc()
		m.Log().Warn("exchange failed", "topology", topVer, "error", err)
		return err
	}
	metrics.ExchangeRounds.WithLabelValues("ok").Inc()
	m.Log().Info("exchange finished", "topology", topVer, "duration", time.Since(start))
	return nil
}

func (m *Manager) exchange(ctx context.Context, topVer grid.TopologyVersion) error {
	sc := m.Shared()
	if sc == nil {
		return errors.New("exchange manager is not started")
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errDisconnected
	}

	wctx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if err := sc.PartitionReleaseFuture(topVer).Get(wctx); err != nil {
		return fmt.Errorf("partition release for topology %v: %w", topVer, err)
	}
	if aff := sc.Affinity(); aff != nil {
		if err := aff.ApplyTopology(ctx, topVer); err != nil {
			return fmt.Errorf("apply affinity for topology %v: %w", topVer, err)
		}
	}

	m.mu.Lock()
	if m.ready.IsNone() || m.ready.Before(topVer) {
		m.ready = topVer
	}
	var done []*future.Future[grid.TopologyVersion]
	for v, f := range m.pending {
		if !topVer.Before(v) {
			done = append(done, f)
			delete(m.pending, v)
		}
	}
	m.mu.Unlock()

	for _, f := range done {
		f.Complete(topVer)
	}
	return nil
}

func (m *Manager) failPending() {
	m.mu.Lock()
	m.closed = true
	pending := m.pending
	m.pending = make(map[grid.TopologyVersion]*future.Future[grid.TopologyVersion])
	m.mu.Unlock()
	for _, f := range pending {
		f.Fail(errDisconnected)
	}
}

// OnDisconnected fails every pending future with a Disconnected error.
func (m *Manager) OnDisconnected(ctx context.Context, reconnect future.Waiter) error {
	m.failPending()
	return nil
}

// Stop fails every pending future.
func (m *Manager) Stop(ctx context.Context, cancel bool) error {
	m.failPending()
	return nil
}
