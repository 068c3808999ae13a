// Package version issues the cache versions that order updates made by
// this node.
package version

import (
	"context"
	"sync"
	"time"

	"github.com/sharedcode/grid"
)

var _ grid.VersionManager = (*Manager)(nil)

// Manager hands out strictly increasing cache versions.
type Manager struct {
	grid.ManagerAdapter
	nodeOrder int32

	mu    sync.Mutex
	order int64
	last  grid.CacheVersion
}

// NewManager returns a Manager stamping versions with nodeOrder.
func NewManager(nodeOrder int32) *Manager {
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "versions"},
		nodeOrder:      nodeOrder,
	}
}

// Start seeds the order counter from the clock so versions issued after a
// restart sort after the ones issued before it.
func (m *Manager) Start(ctx context.Context, sc *grid.SharedContext) error {
	if err := m.ManagerAdapter.Start(ctx, sc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if seed := time.Now().UnixMilli(); seed > m.order {
		m.order = seed
	}
	return nil
}

// Next returns a version on topVer ordered after every version issued so far.
func (m *Manager) Next(topVer grid.TopologyVersion) grid.CacheVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order++
	m.last = grid.CacheVersion{TopologyVersion: topVer.Major, Order: m.order, NodeOrder: m.nodeOrder}
	return m.last
}

// Last returns the most recently issued version.
func (m *Manager) Last() grid.CacheVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
