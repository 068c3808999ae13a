package grid

import (
	"sync/atomic"
	"time"
)

// TxMetrics accumulates transaction outcomes. SharedContext replaces the
// whole instance on ResetTxMetrics, so holders of an old instance keep
// counting into a detached snapshot.
type TxMetrics struct {
	commits      atomic.Int64
	rollbacks    atomic.Int64
	lastCommit   atomic.Int64
	lastRollback atomic.Int64
}

// TxMetricsSnapshot is a point-in-time copy of TxMetrics.
type TxMetricsSnapshot struct {
	Commits          int64     `json:"commits"`
	Rollbacks        int64     `json:"rollbacks"`
	LastCommitTime   time.Time `json:"last_commit_time"`
	LastRollbackTime time.Time `json:"last_rollback_time"`
}

// OnTxCommit records a commit.
func (m *TxMetrics) OnTxCommit() {
	m.commits.Add(1)
	m.lastCommit.Store(time.Now().UnixNano())
}

// OnTxRollback records a rollback.
func (m *TxMetrics) OnTxRollback() {
	m.rollbacks.Add(1)
	m.lastRollback.Store(time.Now().UnixNano())
}

// Snapshot copies the counters.
func (m *TxMetrics) Snapshot() TxMetricsSnapshot {
	s := TxMetricsSnapshot{
		Commits:   m.commits.Load(),
		Rollbacks: m.rollbacks.Load(),
	}
	if t := m.lastCommit.Load(); t != 0 {
		s.LastCommitTime = time.Unix(0, t)
	}
	if t := m.lastRollback.Load(); t != 0 {
		s.LastRollbackTime = time.Unix(0, t)
	}
	return s
}
