package txn

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

var _ grid.Tx = (*Transaction)(nil)

// Transaction is a grid transaction over one or more caches.
type Transaction struct {
	m         *Manager
	sc        *grid.SharedContext
	id        grid.UUID
	worker    grid.UUID
	hasWorker bool
	system    bool
	topVer    grid.TopologyVersion
	maxTime   time.Duration

	// enlistMu serializes Enlist so store sessions start exactly once.
	enlistMu sync.Mutex

	mu             sync.Mutex
	state          grid.TxState
	caches         []int32
	last           future.Waiter
	sessionStarted bool
	closed         bool

	// settled resolves on Committed or RolledBack; done on Close.
	settled *future.Future[struct{}]
	done    *future.Future[struct{}]
}

func (t *Transaction) ID() grid.UUID { return t.id }

func (t *Transaction) System() bool { return t.system }

func (t *Transaction) TopologyVersion() grid.TopologyVersion { return t.topVer }

func (t *Transaction) State() grid.TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ActiveCacheIDs returns the enlisted caches in enlistment order.
func (t *Transaction) ActiveCacheIDs() []int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.caches)
}

func (t *Transaction) SingleCacheID() (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.caches) == 1 {
		return t.caches[0], true
	}
	return 0, false
}

func stateError(t *Transaction, state grid.TxState, op string) error {
	return grid.Error{
		Code:     grid.InvalidTxState,
		Err:      fmt.Errorf("cannot %s transaction %v in state %s", op, t.id, state),
		UserData: state,
	}
}

// Enlist adds the live cache cacheID to the transaction after checking it
// may be combined with the caches already enlisted. The first enlistment
// opens the store sessions.
func (t *Transaction) Enlist(ctx context.Context, cacheID int32) error {
	t.enlistMu.Lock()
	defer t.enlistMu.Unlock()

	t.mu.Lock()
	state, started := t.state, t.sessionStarted
	enlisted := slices.Contains(t.caches, cacheID)
	active := slices.Clone(t.caches)
	t.mu.Unlock()

	if state != grid.TxActive {
		return stateError(t, state, "enlist into")
	}
	if enlisted {
		return nil
	}
	c, ok := t.sc.CacheContext(cacheID)
	if !ok {
		return grid.Error{Code: grid.CacheClosed, Err: fmt.Errorf("cache %d is not started", cacheID), UserData: cacheID}
	}
	if v := t.sc.VerifyTxCompatibility(t, active, c); v != grid.NoViolation {
		return fmt.Errorf("failed to enlist cache %q in transaction: %w", c.Name, v.Err())
	}
	if !started {
		for _, l := range t.sc.StoreSessionListeners() {
			if err := l.OnSessionStart(ctx, t); err != nil {
				return fmt.Errorf("start store session: %w", err)
			}
		}
	}

	t.mu.Lock()
	t.sessionStarted = true
	t.caches = append(t.caches, cacheID)
	t.mu.Unlock()
	return nil
}

// Track records op as the transaction's last asynchronous operation.
func (t *Transaction) Track(op future.Waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = op
}

// AwaitLastFuture waits for the operation passed to the last Track call.
// Only ctx errors are reported.
func (t *Transaction) AwaitLastFuture(ctx context.Context) error {
	t.mu.Lock()
	w := t.last
	t.mu.Unlock()
	if w == nil {
		return nil
	}
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transition moves the state from one of from to to.
func (t *Transaction) transition(to grid.TxState, from ...grid.TxState) (grid.TxState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.state
	if !slices.Contains(from, cur) {
		return cur, false
	}
	t.state = to
	return cur, true
}

// applier writes the transaction to its enlisted caches.
type applier func(ctx context.Context) error

// CommitAsync runs the generic commit: external participants prepare, every
// enlisted cache applies in parallel, then participants finish. Any
// failure before participants finish rolls the transaction back.
func (t *Transaction) CommitAsync(ctx context.Context) *future.Future[grid.Tx] {
	return t.commitAsync(ctx, func(ctx context.Context) error {
		return t.applyAll(ctx, true)
	})
}

func (t *Transaction) commitAsync(ctx context.Context, apply applier) *future.Future[grid.Tx] {
	if cur, ok := t.transition(grid.TxPreparing, grid.TxActive); !ok {
		if cur == grid.TxCommitted {
			return future.Finished[grid.Tx](t)
		}
		return future.Failed[grid.Tx](stateError(t, cur, "commit"))
	}
	f := future.New[grid.Tx]()
	go func() {
		ctx, cancel := t.boundContext(ctx)
		defer cancel()
		if err := t.commit(ctx, apply); err != nil {
			f.Fail(err)
			return
		}
		f.Complete(t)
	}()
	return f
}

func (t *Transaction) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.maxTime > 0 {
		return context.WithTimeout(ctx, t.maxTime)
	}
	return context.WithCancel(ctx)
}

func (t *Transaction) participants() []grid.TwoPhaseParticipant {
	if jta := t.sc.Jta(); jta != nil {
		return jta.Participants(t.id)
	}
	return nil
}

func (t *Transaction) commit(ctx context.Context, apply applier) error {
	parts := t.participants()
	for _, p := range parts {
		if err := p.Phase1Commit(ctx); err != nil {
			return t.abort(ctx, fmt.Errorf("prepare: %w", err))
		}
	}

	t.transition(grid.TxCommitting, grid.TxPreparing)
	if err := apply(ctx); err != nil {
		return t.abort(ctx, fmt.Errorf("commit: %w", err))
	}

	// Caches committed; participant phase 2 failures can no longer undo
	// the transaction and are only logged.
	for _, p := range parts {
		if err := p.Phase2Commit(ctx); err != nil {
			t.m.Log().Warn("participant phase 2 commit failed", "tx", t.id, "error", err)
		}
	}
	if err := t.endSession(ctx, true); err != nil {
		t.m.Log().Warn("store session end failed", "tx", t.id, "error", err)
	}
	t.transition(grid.TxCommitted, grid.TxCommitting)
	t.sc.TxMetrics().OnTxCommit()
	t.release()
	t.settled.Complete(struct{}{})
	t.m.Log().Debug("transaction committed", "tx", t.id)
	return nil
}

// abort rolls back after a failed commit and returns cause, joined with
// the rollback failure if any.
func (t *Transaction) abort(ctx context.Context, cause error) error {
	t.transition(grid.TxRollingBack, grid.TxPreparing, grid.TxCommitting)
	if err := t.rollback(ctx, cause); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// RollbackAsync rolls the transaction back once its state allows it.
func (t *Transaction) RollbackAsync(ctx context.Context) *future.Future[grid.Tx] {
	if cur, ok := t.transition(grid.TxRollingBack, grid.TxActive); !ok {
		if cur == grid.TxRolledBack {
			return future.Finished[grid.Tx](t)
		}
		return future.Failed[grid.Tx](stateError(t, cur, "roll back"))
	}
	f := future.New[grid.Tx]()
	go func() {
		ctx, cancel := t.boundContext(ctx)
		defer cancel()
		if err := t.rollback(ctx, nil); err != nil {
			f.Fail(err)
			return
		}
		f.Complete(t)
	}()
	return f
}

// rollback undoes the enlisted caches and participants. The state must
// already be RollingBack.
func (t *Transaction) rollback(ctx context.Context, cause error) error {
	var errs []error
	if err := t.applyAll(ctx, false); err != nil {
		errs = append(errs, err)
	}
	for _, p := range t.participants() {
		if err := p.Rollback(ctx, cause); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.endSession(ctx, false); err != nil {
		errs = append(errs, err)
	}
	t.transition(grid.TxRolledBack, grid.TxRollingBack)
	t.sc.TxMetrics().OnTxRollback()
	t.release()
	t.settled.Complete(struct{}{})
	t.m.Log().Debug("transaction rolled back", "tx", t.id, "cause", cause)
	return errors.Join(errs...)
}

// applyAll calls ApplyTx on every enlisted cache in parallel. On rollback
// caches that stopped meanwhile are skipped; on commit they fail it.
func (t *Transaction) applyAll(ctx context.Context, commit bool) error {
	ids := t.ActiveCacheIDs()
	tr := grid.NewTaskRunner(ctx, t.m.maxParallel)
	for _, id := range ids {
		c, ok := t.sc.CacheContext(id)
		if !ok {
			if commit {
				tr.Go(func(context.Context) error {
					return grid.Error{Code: grid.CacheClosed, Err: fmt.Errorf("cache %d stopped", id), UserData: id}
				})
			}
			continue
		}
		if c.Cache == nil {
			continue
		}
		tr.Go(func(ctx context.Context) error {
			return c.Cache.ApplyTx(ctx, t, commit)
		})
	}
	return tr.Wait()
}

func (t *Transaction) endSession(ctx context.Context, commit bool) error {
	t.mu.Lock()
	started := t.sessionStarted
	t.sessionStarted = false
	t.mu.Unlock()
	if !started {
		return nil
	}
	var errs []error
	for _, l := range t.sc.StoreSessionListeners() {
		if err := l.OnSessionEnd(ctx, t, commit); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Transaction) release() {
	if jta := t.sc.Jta(); jta != nil {
		jta.Release(t.id)
	}
}

// Close rolls back a transaction still active, waits for an in-flight
// commit or rollback to settle and releases the transaction. Closing twice
// is a no-op.
func (t *Transaction) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	var err error
	if _, ok := t.transition(grid.TxRollingBack, grid.TxActive); ok {
		ctx, cancel := t.boundContext(context.Background())
		err = t.rollback(ctx, nil)
		cancel()
	}
	<-t.settled.Done()
	t.m.remove(t)
	return err
}
