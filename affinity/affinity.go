// Package affinity keeps the partition-to-node assignments of recent
// topology versions.
package affinity

import (
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sharedcode/grid"
)

var _ grid.AffinityManager = (*Manager)(nil)

// Assignment lists, per partition, the nodes owning it; primary first.
type Assignment struct {
	Partitions [][]grid.UUID `json:"partitions"`
}

// Primary returns the primary node of partition p.
func (a Assignment) Primary(p int) (grid.UUID, bool) {
	if p < 0 || p >= len(a.Partitions) || len(a.Partitions[p]) == 0 {
		return grid.NilUUID, false
	}
	return a.Partitions[p][0], true
}

type historyKey struct {
	cacheID int32
	topVer  grid.TopologyVersion
}

// Manager is the affinity manager. Assignments computed for an upcoming
// topology are staged, then published when the exchange to that topology
// applies it.
type Manager struct {
	grid.ManagerAdapter

	mu      sync.Mutex
	history *lru.Cache[historyKey, Assignment]
	staged  map[grid.TopologyVersion]map[int32]Assignment
	current map[int32]Assignment
	ready   grid.TopologyVersion
}

// NewManager returns a Manager remembering up to historySize
// (cache, topology) assignments.
func NewManager(historySize int) (*Manager, error) {
	h, err := lru.New[historyKey, Assignment](historySize)
	if err != nil {
		return nil, fmt.Errorf("affinity history: %w", err)
	}
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "affinity"},
		history:        h,
		staged:         make(map[grid.TopologyVersion]map[int32]Assignment),
		current:        make(map[int32]Assignment),
		ready:          grid.NoTopologyVersion,
	}, nil
}

// Stage records the assignment of cacheID on topVer, published by the
// next ApplyTopology(topVer).
func (m *Manager) Stage(cacheID int32, topVer grid.TopologyVersion, a Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staged[topVer]
	if !ok {
		s = make(map[int32]Assignment)
		m.staged[topVer] = s
	}
	s[cacheID] = a
}

// ApplyTopology publishes the assignments of topVer. Caches with nothing
// staged keep their previous assignment. Versions older than the ready
// one are ignored.
func (m *Manager) ApplyTopology(ctx context.Context, topVer grid.TopologyVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready.IsNone() && topVer.Before(m.ready) {
		return nil
	}
	for id, a := range m.staged[topVer] {
		m.current[id] = a
	}
	for v := range m.staged {
		if !topVer.Before(v) {
			delete(m.staged, v)
		}
	}
	for id, a := range m.current {
		m.history.Add(historyKey{cacheID: id, topVer: topVer}, a)
	}
	m.ready = topVer
	m.Log().Debug("affinity applied", "topology", topVer, "caches", len(m.current))
	return nil
}

// Assignment returns the assignment of cacheID published for topVer.
func (m *Manager) Assignment(cacheID int32, topVer grid.TopologyVersion) (Assignment, bool) {
	return m.history.Get(historyKey{cacheID: cacheID, topVer: topVer})
}

// RemoveCache drops cacheID from future topologies.
func (m *Manager) RemoveCache(cacheID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.current, cacheID)
	for _, s := range m.staged {
		delete(s, cacheID)
	}
}

// ReadyTopologyVersion returns the last applied topology version.
func (m *Manager) ReadyTopologyVersion() grid.TopologyVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Caches returns the ids of caches with a current assignment.
func (m *Manager) Caches() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := make([]int32, 0, len(m.current))
	for id := range m.current {
		r = append(r, id)
	}
	slices.Sort(r)
	return r
}
