package grid

import (
	"errors"
	"fmt"
)

// AddCacheContext registers c. It fails with a CacheIDConflict error when
// another live cache holds c.ID; the registry is left unchanged.
func (sc *SharedContext) AddCacheContext(c *CacheContext) error {
	if c == nil {
		return errors.New("nil cache context")
	}
	existing, loaded := sc.ctxMap.LoadOrStore(c.ID, c)
	if loaded {
		info := CacheIDConflictInfo{CacheName: c.Name, ConflictingName: existing.Name}
		return Error{
			Code: CacheIDConflict,
			Err: fmt.Errorf("failed to start cache due to conflicting cache ID (change cache name and restart grid) %s",
				info),
			UserData: info,
		}
	}
	Logger().Debug("cache context added", "cache", c.Name, "id", c.ID)
	return nil
}

// RemoveCacheContext unregisters c if, and only if, the registry still
// maps c.ID to this very context, then drops c's message handlers. A stale
// c, whose slot is now held by another context, changes nothing.
func (sc *SharedContext) RemoveCacheContext(c *CacheContext) {
	if c == nil {
		return
	}
	removed := false
	sc.ctxMap.Compute(c.ID, func(old *CacheContext, loaded bool) (*CacheContext, bool) {
		if loaded && old == c {
			removed = true
			return nil, true
		}
		// Keep whatever is there; delete of an absent key is a no-op.
		return old, !loaded
	})
	if !removed {
		return
	}
	if io := sc.Io(); io != nil {
		io.RemoveHandlers(c.ID)
	}
	Logger().Debug("cache context removed", "cache", c.Name, "id", c.ID)
}

// CacheContext returns the live context registered under id.
func (sc *SharedContext) CacheContext(id int32) (*CacheContext, bool) {
	return sc.ctxMap.Load(id)
}

// CacheContexts returns a snapshot of the live contexts in no particular
// order.
func (sc *SharedContext) CacheContexts() []*CacheContext {
	r := make([]*CacheContext, 0, sc.ctxMap.Size())
	sc.ctxMap.Range(func(_ int32, c *CacheContext) bool {
		r = append(r, c)
		return true
	})
	return r
}

// Closed reports whether c's cache stopped, i.e. its id is no longer
// registered.
func (sc *SharedContext) Closed(c *CacheContext) bool {
	_, ok := sc.ctxMap.Load(c.ID)
	return !ok
}

// DataCenterID returns the data center of the live caches. Every cache on
// a node shares it, so any one answers.
func (sc *SharedContext) DataCenterID() (uint8, bool) {
	var (
		id    uint8
		found bool
	)
	sc.ctxMap.Range(func(_ int32, c *CacheContext) bool {
		id, found = c.DataCenterID, true
		return false
	})
	return id, found
}
