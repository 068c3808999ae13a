// Package node assembles a grid node: the shared context with its managers,
// the locker chosen by the coordination mode and the node lifecycle.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/affinity"
	"github.com/sharedcode/grid/cacheio"
	"github.com/sharedcode/grid/deploy"
	"github.com/sharedcode/grid/exchange"
	"github.com/sharedcode/grid/future"
	"github.com/sharedcode/grid/jta"
	"github.com/sharedcode/grid/mvcc"
	"github.com/sharedcode/grid/redis"
	"github.com/sharedcode/grid/txn"
	"github.com/sharedcode/grid/version"
)

const connectRetries = 5

// CacheConfig describes a cache started on the node.
type CacheConfig struct {
	Name   string
	System bool
	Store  grid.StoreDescriptor
	// Apply writes or discards a transaction's changes to the cache.
	Apply txn.ApplyFunc
}

// Node is a grid node.
type Node struct {
	opts grid.NodeOptions
	sc   *grid.SharedContext

	mvcc     *mvcc.Manager
	versions *version.Manager
	tx       *txn.Manager
	jta      *jta.Manager
	affinity *affinity.Manager
	io       *cacheio.Manager
	redis    *redis.Connection

	mu        sync.Mutex
	started   bool
	reconnect *future.Future[struct{}]
}

// New builds a node from opts. Managers are not started.
func New(opts grid.NodeOptions, options ...Option) (*Node, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node options: %w", err)
	}
	var cfg config
	for _, o := range options {
		o(&cfg)
	}

	nodeID := grid.NewUUID()
	if opts.NodeID != "" {
		id, err := grid.ParseUUID(opts.NodeID)
		if err != nil {
			return nil, err
		}
		nodeID = id
	}

	n := &Node{opts: opts}
	locker := cfg.locker
	if locker == nil {
		switch opts.Mode {
		case grid.Clustered:
			conn, err := redis.OpenConnection(redis.OptionsFromConfig(*opts.RedisConfig))
			if err != nil {
				return nil, err
			}
			n.redis = conn
			locker = redis.NewLocker(conn)
		default:
			locker = mvcc.NewInMemoryLocker()
		}
	}

	aff, err := affinity.NewManager(opts.AffinityHistorySize)
	if err != nil {
		return nil, err
	}
	n.mvcc = mvcc.NewManager(locker, opts.LockTTL)
	n.versions = version.NewManager(cfg.nodeOrder)
	n.tx = txn.NewManager(cfg.maxParallel)
	n.jta = jta.NewManager()
	n.affinity = aff
	n.io = cacheio.NewManager(cfg.transport)

	ms := grid.Managers{
		Mvcc:     n.mvcc,
		Versions: n.versions,
		Tx:       n.tx,
		Jta:      n.jta,
		Exchange: exchange.NewManager(opts.ExchangeTimeout),
		Affinity: n.affinity,
		Io:       n.io,
	}
	if opts.DeploymentEnabled {
		ms.Deployment = deploy.NewManager(true)
	}
	n.sc, err = grid.NewSharedContext(grid.SharedContextOptions{
		NodeID:                nodeID,
		NetworkTimeout:        opts.NetworkTimeout,
		Managers:              ms,
		NewDeploymentManager:  func() grid.DeploymentManager { return deploy.NewManager(true) },
		NewExchangeManager:    func() grid.ExchangeManager { return exchange.NewManager(opts.ExchangeTimeout) },
		StoreSessionListeners: cfg.listeners,
	})
	if err != nil {
		n.closeRedis()
		return nil, err
	}
	return n, nil
}

func (n *Node) closeRedis() {
	if n.redis != nil {
		if err := n.redis.Close(); err != nil {
			grid.Logger().Warn("closing redis connection failed", "error", err)
		}
	}
}

// ping verifies the Redis server is reachable in clustered mode.
func (n *Node) ping(ctx context.Context) error {
	if n.redis == nil {
		return nil
	}
	return grid.Retry(ctx, connectRetries, n.redis.Ping, func(ctx context.Context) {
		grid.Logger().Error("redis unreachable", "address", n.redis.Options.Address)
	})
}

// Start connects to the coordination backend, starts the managers and
// notifies them the node is up.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("node already started")
	}
	if err := n.ping(ctx); err != nil {
		return fmt.Errorf("connect coordination backend: %w", err)
	}
	if err := n.sc.Start(ctx); err != nil {
		return err
	}
	if err := n.sc.OnNodeStart(ctx, false); err != nil {
		return err
	}
	n.started = true
	grid.Logger().Info("node started", "node", n.sc.NodeID(), "mode", n.opts.Mode, "build", grid.BuildInfo())
	return nil
}

// Stop stops the managers and releases the node's resources. The node
// cannot be restarted.
func (n *Node) Stop(ctx context.Context, cancel bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return nil
	}
	n.started = false
	var errs []error
	if err := n.sc.OnNodeStop(ctx, cancel); err != nil {
		errs = append(errs, err)
	}
	if err := n.sc.Stop(ctx, cancel); err != nil {
		errs = append(errs, err)
	}
	n.sc.Cleanup()
	n.closeRedis()
	grid.Logger().Info("node stopped", "node", n.sc.NodeID())
	return errors.Join(errs...)
}

// Disconnect handles the loss of the cluster connection.
func (n *Node) Disconnect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconnect = future.New[struct{}]()
	return n.sc.OnDisconnected(ctx, n.reconnect)
}

// Reconnect restores the cluster connection after Disconnect.
func (n *Node) Reconnect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ping(ctx); err != nil {
		return fmt.Errorf("reconnect coordination backend: %w", err)
	}
	if err := n.sc.OnReconnected(ctx); err != nil {
		if n.reconnect != nil {
			n.reconnect.Fail(err)
		}
		return err
	}
	if n.reconnect != nil {
		n.reconnect.Complete(struct{}{})
		n.reconnect = nil
	}
	return nil
}

// Shared returns the node's shared context.
func (n *Node) Shared() *grid.SharedContext { return n.sc }

func (n *Node) Mvcc() *mvcc.Manager { return n.mvcc }
func (n *Node) Versions() *version.Manager { return n.versions }
func (n *Node) Tx() *txn.Manager { return n.tx }
func (n *Node) Jta() *jta.Manager { return n.jta }
func (n *Node) Affinity() *affinity.Manager { return n.affinity }
func (n *Node) Io() *cacheio.Manager { return n.io }

// Exchange returns the current exchange manager; it changes on reconnect.
func (n *Node) Exchange() *exchange.Manager {
	ex, _ := n.sc.Exchange().(*exchange.Manager)
	return ex
}

// Deployment returns the current deployment manager, nil when deployment
// is disabled.
func (n *Node) Deployment() *deploy.Manager {
	d, _ := n.sc.Deployment().(*deploy.Manager)
	return d
}

// BeginTx starts a transaction for the worker carried by ctx.
func (n *Node) BeginTx(ctx context.Context, opts txn.TxOptions) (*txn.Transaction, error) {
	return n.tx.Begin(ctx, opts)
}

// StartCache registers a cache on the node.
func (n *Node) StartCache(ctx context.Context, cfg CacheConfig) (*grid.CacheContext, error) {
	if cfg.Name == "" {
		return nil, errors.New("cache name is required")
	}
	id := grid.CacheID(cfg.Name)
	cc := &grid.CacheContext{
		ID:                id,
		Name:              cfg.Name,
		System:            cfg.System,
		DeploymentEnabled: n.sc.DeploymentEnabled(),
		DataCenterID:      n.opts.DataCenterID,
		Store:             cfg.Store,
		Cache:             txn.NewLocalCache(id, cfg.Apply),
	}
	if err := n.sc.AddCacheContext(cc); err != nil {
		return nil, err
	}
	grid.Logger().Info("cache started", "cache", cc.Name, "id", cc.ID)
	return cc, nil
}

// StopCache unregisters cc. Stopping a cache twice is a no-op.
func (n *Node) StopCache(ctx context.Context, cc *grid.CacheContext) {
	closed := n.sc.Closed(cc)
	n.sc.RemoveCacheContext(cc)
	if !closed && n.sc.Closed(cc) {
		n.affinity.RemoveCache(cc.ID)
		grid.Logger().Info("cache stopped", "cache", cc.Name, "id", cc.ID)
	}
}
