package grid

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sharedcode/grid/future"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

type fakeManager struct {
	ManagerAdapter
	calls    *callLog
	startErr error
	stopErr  error
}

func newFakeManager(name string, l *callLog) *fakeManager {
	return &fakeManager{ManagerAdapter: ManagerAdapter{ManagerName: name}, calls: l}
}

func (f *fakeManager) Start(ctx context.Context, sc *SharedContext) error {
	f.calls.add("start:" + f.ManagerName)
	if err := f.ManagerAdapter.Start(ctx, sc); err != nil {
		return err
	}
	return f.startErr
}

func (f *fakeManager) Stop(ctx context.Context, cancel bool) error {
	f.calls.add("stop:" + f.ManagerName)
	return f.stopErr
}

func (f *fakeManager) OnNodeStart(ctx context.Context, reconnecting bool) error {
	f.calls.add(fmt.Sprintf("nodestart:%s:%v", f.ManagerName, reconnecting))
	return nil
}

func (f *fakeManager) OnNodeStop(ctx context.Context, cancel bool) error {
	f.calls.add("nodestop:" + f.ManagerName)
	return nil
}

func (f *fakeManager) OnDisconnected(ctx context.Context, reconnect future.Waiter) error {
	f.calls.add("disconnected:" + f.ManagerName)
	return nil
}

func (f *fakeManager) OnReconnected(ctx context.Context) error {
	f.calls.add("reconnected:" + f.ManagerName)
	return nil
}

type fakeMvcc struct {
	*fakeManager
	mu       sync.Mutex
	explicit future.Waiter
	atomic   future.Waiter
	askedFor []TopologyVersion
	lastLock map[UUID]TopologyVersion
	resets   []UUID
}

func (m *fakeMvcc) FinishExplicitLocks(v TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.askedFor = append(m.askedFor, v)
	return m.explicit
}

func (m *fakeMvcc) FinishAtomicUpdates(v TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.askedFor = append(m.askedFor, v)
	return m.atomic
}

func (m *fakeMvcc) LastExplicitLockTopologyVersion(worker UUID) (TopologyVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.lastLock[worker]
	return v, ok
}

func (m *fakeMvcc) ContextReset(worker UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, worker)
}

type fakeTxManager struct {
	*fakeManager
	mu       sync.Mutex
	finish   future.Waiter
	askedFor []TopologyVersion
	locked   map[UUID]TopologyVersion
	ignored  []Tx
}

func (m *fakeTxManager) FinishTxs(v TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.askedFor = append(m.askedFor, v)
	return m.finish
}

func (m *fakeTxManager) LockedTopologyVersion(worker UUID, ignore Tx) (TopologyVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored = append(m.ignored, ignore)
	v, ok := m.locked[worker]
	return v, ok
}

type fakeExchange struct {
	*fakeManager
	mu      sync.Mutex
	pending map[TopologyVersion]future.Waiter
	asked   []TopologyVersion
}

func (m *fakeExchange) AffinityReadyFuture(v TopologyVersion) future.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append(m.asked, v)
	return m.pending[v]
}

func (m *fakeExchange) ReadyTopologyVersion() TopologyVersion { return NoTopologyVersion }

type fakeDeployment struct {
	*fakeManager
	enabled bool
}

func (m *fakeDeployment) Enabled() bool { return m.enabled }

type fakeVersions struct{ *fakeManager }

func (m *fakeVersions) Next(v TopologyVersion) CacheVersion {
	return CacheVersion{TopologyVersion: v.Major}
}

type fakeAffinity struct{ *fakeManager }

func (m *fakeAffinity) ApplyTopology(ctx context.Context, v TopologyVersion) error { return nil }

func (m *fakeAffinity) ReadyTopologyVersion() TopologyVersion { return NoTopologyVersion }

type fakeJta struct{ *fakeManager }

func (m *fakeJta) Participants(txID UUID) []TwoPhaseParticipant { return nil }

func (m *fakeJta) Release(txID UUID) {}

type fakeIo struct {
	*fakeManager
	mu      sync.Mutex
	removed []int32
}

func (m *fakeIo) RemoveHandlers(cacheID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, cacheID)
}

func (m *fakeIo) removedIDs() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.removed)
}

type testFixture struct {
	sc        *SharedContext
	calls     *callLog
	mvcc      *fakeMvcc
	versions  *fakeVersions
	tx        *fakeTxManager
	jta       *fakeJta
	deploy    *fakeDeployment
	exchange  *fakeExchange
	affinity  *fakeAffinity
	io        *fakeIo
	exchanges []*fakeExchange
	deploys   []*fakeDeployment
}

func newFixture() *testFixture {
	l := &callLog{}
	f := &testFixture{calls: l}
	f.mvcc = &fakeMvcc{fakeManager: newFakeManager("mvcc", l), lastLock: map[UUID]TopologyVersion{}}
	f.versions = &fakeVersions{newFakeManager("versions", l)}
	f.tx = &fakeTxManager{fakeManager: newFakeManager("tx", l), locked: map[UUID]TopologyVersion{}}
	f.jta = &fakeJta{newFakeManager("jta", l)}
	f.deploy = &fakeDeployment{fakeManager: newFakeManager("deployment", l)}
	f.exchange = newFakeExchange(l)
	f.affinity = &fakeAffinity{newFakeManager("affinity", l)}
	f.io = &fakeIo{fakeManager: newFakeManager("io", l)}

	sc, err := NewSharedContext(SharedContextOptions{
		Managers: Managers{
			Mvcc:       f.mvcc,
			Versions:   f.versions,
			Tx:         f.tx,
			Jta:        f.jta,
			Deployment: f.deploy,
			Exchange:   f.exchange,
			Affinity:   f.affinity,
			Io:         f.io,
		},
		NewDeploymentManager: func() DeploymentManager {
			d := &fakeDeployment{fakeManager: newFakeManager("deployment", l)}
			f.deploys = append(f.deploys, d)
			return d
		},
		NewExchangeManager: func() ExchangeManager {
			e := newFakeExchange(l)
			f.exchanges = append(f.exchanges, e)
			return e
		},
	})
	if err != nil {
		panic(err)
	}
	f.sc = sc
	return f
}

func newFakeExchange(l *callLog) *fakeExchange {
	return &fakeExchange{fakeManager: newFakeManager("exchange", l), pending: map[TopologyVersion]future.Waiter{}}
}

type fakeTxn struct {
	id       UUID
	system   bool
	caches   []int32
	awaitErr error

	calls callLog
}

func newFakeTxn(system bool, caches ...int32) *fakeTxn {
	return &fakeTxn{id: NewUUID(), system: system, caches: caches}
}

func (t *fakeTxn) ID() UUID                         { return t.id }
func (t *fakeTxn) System() bool                     { return t.system }
func (t *fakeTxn) State() TxState                   { return TxActive }
func (t *fakeTxn) TopologyVersion() TopologyVersion { return TopologyVersion{Major: 1} }
func (t *fakeTxn) ActiveCacheIDs() []int32          { return slices.Clone(t.caches) }

func (t *fakeTxn) SingleCacheID() (int32, bool) {
	if len(t.caches) == 1 {
		return t.caches[0], true
	}
	return 0, false
}

func (t *fakeTxn) AwaitLastFuture(ctx context.Context) error {
	t.calls.add("await")
	return t.awaitErr
}

func (t *fakeTxn) CommitAsync(ctx context.Context) *future.Future[Tx] {
	t.calls.add("commit")
	return future.Finished[Tx](t)
}

func (t *fakeTxn) RollbackAsync(ctx context.Context) *future.Future[Tx] {
	t.calls.add("rollback")
	return future.Finished[Tx](t)
}

func (t *fakeTxn) Close() error {
	t.calls.add("close")
	return nil
}

type fakeCacheOps struct {
	calls callLog
}

func (c *fakeCacheOps) CommitTxAsync(ctx context.Context, tx Tx) *future.Future[Tx] {
	c.calls.add("cache-commit")
	return future.Finished(tx)
}

func (c *fakeCacheOps) ApplyTx(ctx context.Context, tx Tx, commit bool) error {
	c.calls.add(fmt.Sprintf("apply:%v", commit))
	return nil
}
