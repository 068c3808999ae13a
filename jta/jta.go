// Package jta keeps the external two-phase commit participants enlisted in
// grid transactions.
package jta

import (
	"slices"
	"sync"

	"github.com/sharedcode/grid"
)

var _ grid.JtaManager = (*Manager)(nil)

// Manager maps transaction ids to their external participants.
type Manager struct {
	grid.ManagerAdapter

	mu    sync.Mutex
	parts map[grid.UUID][]grid.TwoPhaseParticipant
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "jta"},
		parts:          make(map[grid.UUID][]grid.TwoPhaseParticipant),
	}
}

// Enlist adds participants to transaction txID.
func (m *Manager) Enlist(txID grid.UUID, participants ...grid.TwoPhaseParticipant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parts[txID] = append(m.parts[txID], participants...)
}

// Participants returns the participants of txID in enlistment order.
func (m *Manager) Participants(txID grid.UUID) []grid.TwoPhaseParticipant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.parts[txID])
}

// Release forgets txID.
func (m *Manager) Release(txID grid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parts, txID)
}
