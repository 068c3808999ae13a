package grid

import (
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Managers lists the subsystem managers of a SharedContext. Nil entries
// are skipped; Mvcc, Tx, Exchange and Io are required.
type Managers struct {
	Mvcc       MvccManager
	Versions   VersionManager
	Tx         TxManager
	Jta        JtaManager
	Deployment DeploymentManager
	Exchange   ExchangeManager
	Affinity   AffinityManager
	Io         IoManager
}

// SharedContextOptions configures NewSharedContext.
type SharedContextOptions struct {
	NodeID         UUID
	NetworkTimeout time.Duration
	Managers       Managers
	// NewDeploymentManager and NewExchangeManager build the fresh
	// instances installed on reconnect.
	NewDeploymentManager func() DeploymentManager
	NewExchangeManager   func() ExchangeManager
	// StoreSessionListeners is copied; later changes to the slice are not
	// observed.
	StoreSessionListeners []StoreSessionListener
}

type managerSlot struct {
	mgr         Manager
	restartable bool
}

// managerSet is replaced wholesale on reconnect and cleanup so worker
// goroutines never observe a half-updated set.
type managerSet struct {
	slots []managerSlot

	mvcc     MvccManager
	versions VersionManager
	tx       TxManager
	jta      JtaManager
	deploy   DeploymentManager
	exchange ExchangeManager
	affinity AffinityManager
	io       IoManager
}

// SharedContext is the cache state shared by every cache on a node.
type SharedContext struct {
	nodeID         UUID
	networkTimeout time.Duration

	managers atomic.Pointer[managerSet]

	newDeployment func() DeploymentManager
	newExchange   func() ExchangeManager

	ctxMap *xsync.MapOf[int32, *CacheContext]

	txMetrics atomic.Pointer[TxMetrics]

	storeSessionListeners []StoreSessionListener
}

// NewSharedContext builds a shared context. Managers are not started.
func NewSharedContext(opts SharedContextOptions) (*SharedContext, error) {
	m := opts.Managers
	var errs []error
	if m.Mvcc == nil {
		errs = append(errs, errors.New("mvcc manager is required"))
	}
	if m.Tx == nil {
		errs = append(errs, errors.New("transaction manager is required"))
	}
	if m.Exchange == nil {
		errs = append(errs, errors.New("exchange manager is required"))
	}
	if m.Io == nil {
		errs = append(errs, errors.New("io manager is required"))
	}
	if opts.NewExchangeManager == nil {
		errs = append(errs, errors.New("exchange manager factory is required"))
	}
	if m.Deployment != nil && opts.NewDeploymentManager == nil {
		errs = append(errs, errors.New("deployment manager factory is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	sc := &SharedContext{
		nodeID:                opts.NodeID,
		networkTimeout:        opts.NetworkTimeout,
		newDeployment:         opts.NewDeploymentManager,
		newExchange:           opts.NewExchangeManager,
		ctxMap:                xsync.NewMapOf[int32, *CacheContext](),
		storeSessionListeners: slices.Clone(opts.StoreSessionListeners),
	}
	if sc.nodeID.IsNil() {
		sc.nodeID = NewUUID()
	}
	sc.managers.Store(newManagerSet(m))
	sc.txMetrics.Store(&TxMetrics{})
	return sc, nil
}

// newManagerSet lays the managers out in start order: lock/MVCC first,
// message dispatch last.
func newManagerSet(m Managers) *managerSet {
	s := &managerSet{
		mvcc:     m.Mvcc,
		versions: m.Versions,
		tx:       m.Tx,
		jta:      m.Jta,
		deploy:   m.Deployment,
		exchange: m.Exchange,
		affinity: m.Affinity,
		io:       m.Io,
	}
	add := func(mgr Manager, restartable bool) {
		s.slots = append(s.slots, managerSlot{mgr: mgr, restartable: restartable})
	}
	if m.Mvcc != nil {
		add(m.Mvcc, false)
	}
	if m.Versions != nil {
		add(m.Versions, false)
	}
	if m.Tx != nil {
		add(m.Tx, false)
	}
	if m.Jta != nil {
		add(m.Jta, false)
	}
	if m.Deployment != nil {
		add(m.Deployment, true)
	}
	if m.Exchange != nil {
		add(m.Exchange, true)
	}
	if m.Affinity != nil {
		add(m.Affinity, false)
	}
	if m.Io != nil {
		add(m.Io, false)
	}
	return s
}

func (sc *SharedContext) set() *managerSet {
	return sc.managers.Load()
}

// NodeID identifies the local node.
func (sc *SharedContext) NodeID() UUID { return sc.nodeID }

// Managers returns the managers in start order.
func (sc *SharedContext) Managers() []Manager {
	slots := sc.set().slots
	r := make([]Manager, len(slots))
	for i := range slots {
		r[i] = slots[i].mgr
	}
	return r
}

func (sc *SharedContext) Mvcc() MvccManager { return sc.set().mvcc }
func (sc *SharedContext) Versions() VersionManager { return sc.set().versions }
func (sc *SharedContext) Tx() TxManager { return sc.set().tx }
func (sc *SharedContext) Jta() JtaManager { return sc.set().jta }
func (sc *SharedContext) Deployment() DeploymentManager { return sc.set().deploy }
func (sc *SharedContext) Exchange() ExchangeManager { return sc.set().exchange }
func (sc *SharedContext) Affinity() AffinityManager { return sc.set().affinity }
func (sc *SharedContext) Io() IoManager { return sc.set().io }

// TxMetrics returns the current transaction metrics.
func (sc *SharedContext) TxMetrics() *TxMetrics {
	return sc.txMetrics.Load()
}

// ResetTxMetrics installs a fresh metrics instance.
func (sc *SharedContext) ResetTxMetrics() {
	sc.txMetrics.Store(&TxMetrics{})
}

// StoreSessionListeners returns a copy of the configured listeners.
func (sc *SharedContext) StoreSessionListeners() []StoreSessionListener {
	return slices.Clone(sc.storeSessionListeners)
}

// DeploymentEnabled reports whether peer class deployment is on.
func (sc *SharedContext) DeploymentEnabled() bool {
	d := sc.Deployment()
	return d != nil && d.Enabled()
}

// PreloadExchangeTimeout is the time a partition preload may wait on an
// exchange: the larger of four network timeouts and two network timeouts
// per live cache.
func (sc *SharedContext) PreloadExchangeTimeout() time.Duration {
	const maxDuration = time.Duration(1<<63 - 1)
	nt := sc.networkTimeout
	if nt <= 0 {
		return maxDuration
	}
	n := time.Duration(sc.ctxMap.Size())
	t1 := nt * 4
	if t1/4 != nt {
		return maxDuration
	}
	t2 := nt * n * 2
	if n != 0 && t2/(n*2) != nt {
		return maxDuration
	}
	return max(t1, t2)
}

// Cleanup releases the manager references. The context must not be used
// afterwards.
func (sc *SharedContext) Cleanup() {
	old := sc.set()
	sc.managers.Store(&managerSet{
		versions: old.versions,
		tx:       old.tx,
		jta:      old.jta,
		deploy:   old.deploy,
		exchange: old.exchange,
		affinity: old.affinity,
		io:       old.io,
	})
}
