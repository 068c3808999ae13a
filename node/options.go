package node

import (
	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/cacheio"
	"github.com/sharedcode/grid/mvcc"
)

type config struct {
	locker      mvcc.Locker
	transport   cacheio.Transport
	listeners   []grid.StoreSessionListener
	maxParallel int
	nodeOrder   int32
}

// Option customizes a Node.
type Option func(*config)

// WithLocker replaces the locker chosen from the coordination mode.
func WithLocker(l mvcc.Locker) Option {
	return func(c *config) { c.locker = l }
}

// WithTransport sets the transport of cache messages. The default
// delivers to the local node.
func WithTransport(t cacheio.Transport) Option {
	return func(c *config) { c.transport = t }
}

// WithStoreSessionListeners registers store session listeners.
func WithStoreSessionListeners(ls ...grid.StoreSessionListener) Option {
	return func(c *config) { c.listeners = append(c.listeners, ls...) }
}

// WithMaxParallelApply bounds how many caches a multi-cache commit applies
// to at once.
func WithMaxParallelApply(n int) Option {
	return func(c *config) { c.maxParallel = n }
}

// WithNodeOrder sets the order stamped on cache versions issued by the node.
func WithNodeOrder(order int32) Option {
	return func(c *config) { c.nodeOrder = order }
}
