// Package grid is the node-local coordination context of a partitioned,
// transactional, in-memory cache grid.
//
// SharedContext is the aggregate root. It owns the fixed-order lifecycle of
// the cache subsystem managers (lock/MVCC, version, transaction, external
// transaction integration, deployment, partition exchange, affinity and
// message dispatch), the registry mapping a cache identifier to its
// CacheContext, the topology gate used by partition exchange to drain
// in-flight work pinned to an older topology, and the compatibility rules
// applied when a transaction enlists more than one cache.
//
// Concrete managers live in sub-packages (mvcc, txn, version, exchange,
// deploy, affinity, cacheio, jta). The node package wires them together.
package grid
