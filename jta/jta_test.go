package jta

import (
	"context"
	"testing"

	"github.com/sharedcode/grid"
)

type participant struct{ name string }

func (p *participant) Phase1Commit(ctx context.Context) error          { return nil }
func (p *participant) Phase2Commit(ctx context.Context) error          { return nil }
func (p *participant) Rollback(ctx context.Context, cause error) error { return nil }

func TestEnlistRelease(t *testing.T) {
	m := NewManager()
	tx := grid.NewUUID()
	a, b := &participant{"a"}, &participant{"b"}
	m.Enlist(tx, a)
	m.Enlist(tx, b)
	ps := m.Participants(tx)
	if len(ps) != 2 || ps[0] != grid.TwoPhaseParticipant(a) || ps[1] != grid.TwoPhaseParticipant(b) {
		t.Fatalf("unexpected participants %v", ps)
	}
	if len(m.Participants(grid.NewUUID())) != 0 {
		t.Fatalf("unknown transaction has participants")
	}
	m.Release(tx)
	if len(m.Participants(tx)) != 0 {
		t.Fatalf("participants survived release")
	}
}
