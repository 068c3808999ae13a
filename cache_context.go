package grid

import (
	"context"

	"github.com/sharedcode/grid/future"
)

// StoreDescriptor describes the persistence store behind a cache.
type StoreDescriptor struct {
	// Local is true for a store written only by the local node.
	Local bool `json:"local"`
	// WriteBehind is true when writes are buffered and flushed asynchronously.
	WriteBehind bool `json:"write_behind"`
	// WriteToStoreFromDht is true when the primary node, not the
	// transaction originator, writes to the store. It is implied by the
	// other two flags.
	WriteToStoreFromDht bool `json:"write_to_store_from_dht"`
}

// NewStoreDescriptor returns a descriptor with WriteToStoreFromDht derived
// from locality and write-behind.
func NewStoreDescriptor(local, writeBehind bool) StoreDescriptor {
	return StoreDescriptor{
		Local:               local,
		WriteBehind:         writeBehind,
		WriteToStoreFromDht: !local && !writeBehind,
	}
}

// CacheOperations is the per-cache side of transaction completion.
type CacheOperations interface {
	// CommitTxAsync commits a transaction that enlisted only this cache.
	CommitTxAsync(ctx context.Context, tx Tx) *future.Future[Tx]
	// ApplyTx is called on every enlisted cache by the generic commit and
	// rollback paths.
	ApplyTx(ctx context.Context, tx Tx, commit bool) error
}

// CacheContext is the runtime state of one locally started cache.
type CacheContext struct {
	ID                int32
	Name              string
	System            bool
	DeploymentEnabled bool
	DataCenterID      uint8
	Store             StoreDescriptor
	// Cache is the cache's own commit path. Nil sends every transaction
	// through the generic path.
	Cache CacheOperations
}

// CacheID derives the identifier of a cache from its name. It is the
// 31-multiplier string hash used across the cluster, with 0 remapped to 1
// so an identifier is never zero.
func CacheID(name string) int32 {
	var h int32
	for _, r := range name {
		if r > 0xFFFF {
			// Hash as a UTF-16 surrogate pair.
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	if h == 0 {
		return 1
	}
	return h
}
