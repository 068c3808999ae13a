package grid

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharedcode/grid/future"
)

func lifecycleError(op string, m Manager, err error) error {
	return Error{
		Code:     LifecycleFailure,
		Err:      fmt.Errorf("%s %s: %w", op, m.Name(), err),
		UserData: m.Name(),
	}
}

// Start starts the managers in order. The first failure aborts the
// transition and is returned.
func (sc *SharedContext) Start(ctx context.Context) error {
	for _, s := range sc.set().slots {
		if err := s.mgr.Start(ctx, sc); err != nil {
			return lifecycleError("start", s.mgr, err)
		}
		Logger().Debug("manager started", "manager", s.mgr.Name())
	}
	return nil
}

// Stop stops the managers in reverse start order.
func (sc *SharedContext) Stop(ctx context.Context, cancel bool) error {
	slots := sc.set().slots
	for i := len(slots) - 1; i >= 0; i-- {
		if err := slots[i].mgr.Stop(ctx, cancel); err != nil {
			return lifecycleError("stop", slots[i].mgr, err)
		}
		Logger().Debug("manager stopped", "manager", slots[i].mgr.Name())
	}
	return nil
}

// OnNodeStart notifies the managers in start order that the node started.
func (sc *SharedContext) OnNodeStart(ctx context.Context, reconnecting bool) error {
	for _, s := range sc.set().slots {
		if err := s.mgr.OnNodeStart(ctx, reconnecting); err != nil {
			return lifecycleError("node start", s.mgr, err)
		}
	}
	return nil
}

// OnNodeStop notifies the managers in reverse start order that the node is
// stopping.
func (sc *SharedContext) OnNodeStop(ctx context.Context, cancel bool) error {
	slots := sc.set().slots
	for i := len(slots) - 1; i >= 0; i-- {
		if err := slots[i].mgr.OnNodeStop(ctx, cancel); err != nil {
			return lifecycleError("node stop", slots[i].mgr, err)
		}
	}
	return nil
}

// OnDisconnected tells every manager, in reverse start order, that the
// cluster connection is lost. The deployment and exchange managers hold
// state derived from cluster membership; they are node-stopped in the same
// pass and stopped in a second one, to be rebuilt by OnReconnected. The
// other managers keep their local bookkeeping.
func (sc *SharedContext) OnDisconnected(ctx context.Context, reconnect future.Waiter) error {
	slots := sc.set().slots
	for i := len(slots) - 1; i >= 0; i-- {
		s := slots[i]
		if err := s.mgr.OnDisconnected(ctx, reconnect); err != nil {
			return lifecycleError("disconnect", s.mgr, err)
		}
		if s.restartable {
			if err := s.mgr.OnNodeStop(ctx, true); err != nil {
				return lifecycleError("disconnect", s.mgr, err)
			}
		}
	}
	for i := len(slots) - 1; i >= 0; i-- {
		s := slots[i]
		if !s.restartable {
			continue
		}
		if err := s.mgr.Stop(ctx, true); err != nil {
			return lifecycleError("disconnect", s.mgr, err)
		}
	}
	Logger().Info("shared context disconnected", "node", sc.nodeID)
	return nil
}

// OnReconnected installs fresh deployment and exchange managers in their
// original positions, starts them, tells the retained managers the
// connection is back and finally node-starts the whole sequence with
// reconnecting set.
func (sc *SharedContext) OnReconnected(ctx context.Context) error {
	old := sc.set()
	ms := Managers{
		Mvcc:     old.mvcc,
		Versions: old.versions,
		Tx:       old.tx,
		Jta:      old.jta,
		Affinity: old.affinity,
		Io:       old.io,
	}
	if old.deploy != nil {
		if sc.newDeployment == nil {
			return Error{Code: LifecycleFailure, Err: errors.New("no deployment manager factory")}
		}
		ms.Deployment = sc.newDeployment()
	}
	if old.exchange != nil {
		if sc.newExchange == nil {
			return Error{Code: LifecycleFailure, Err: errors.New("no exchange manager factory")}
		}
		ms.Exchange = sc.newExchange()
	}
	next := newManagerSet(ms)
	sc.managers.Store(next)

	for _, s := range next.slots {
		if s.restartable {
			if err := s.mgr.Start(ctx, sc); err != nil {
				return lifecycleError("reconnect", s.mgr, err)
			}
			continue
		}
		if err := s.mgr.OnReconnected(ctx); err != nil {
			return lifecycleError("reconnect", s.mgr, err)
		}
	}
	if err := sc.OnNodeStart(ctx, true); err != nil {
		return err
	}
	Logger().Info("shared context reconnected", "node", sc.nodeID)
	return nil
}
