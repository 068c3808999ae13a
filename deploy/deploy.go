// Package deploy tracks the peers that serve class deployment to this node.
package deploy

import (
	"context"
	"slices"
	"sync"

	"github.com/sharedcode/grid"
)

var _ grid.DeploymentManager = (*Manager)(nil)

// Participant is a peer node and the deployment source it serves.
type Participant struct {
	Node   grid.UUID `json:"node"`
	Source string    `json:"source"`
}

// Manager is the deployment manager. Its state is derived from cluster
// membership and is dropped on stop; a reconnected node gets a fresh one.
type Manager struct {
	grid.ManagerAdapter
	enabled bool

	mu           sync.Mutex
	participants map[grid.UUID]string
}

// NewManager returns a deployment manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "deployment"},
		enabled:        enabled,
		participants:   make(map[grid.UUID]string),
	}
}

// Enabled reports whether peer class deployment is on.
func (m *Manager) Enabled() bool { return m.enabled }

// Register records node as serving source.
func (m *Manager) Register(node grid.UUID, source string) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[node] = source
}

// Participants returns the registered peers ordered by node id.
func (m *Manager) Participants() []Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := make([]Participant, 0, len(m.participants))
	for n, s := range m.participants {
		r = append(r, Participant{Node: n, Source: s})
	}
	slices.SortFunc(r, func(a, b Participant) int { return a.Node.Compare(b.Node) })
	return r
}

// Stop forgets every participant.
func (m *Manager) Stop(ctx context.Context, cancel bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.participants)
	return nil
}
