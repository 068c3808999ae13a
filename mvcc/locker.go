package mvcc

import (
	"context"
	"sync"
	"time"

	"github.com/sharedcode/grid"
)

// Locker stores explicit locks. The in-memory locker serves a standalone
// node; the redis package's Locker shares locks across a cluster.
type Locker interface {
	// Lock acquires key for owner. When another owner holds the key it
	// returns false and that owner. Locking a key the owner already holds
	// succeeds and renews its TTL; Manager counts such re-locks so one
	// Unlock frees the key.
	Lock(ctx context.Context, key string, owner grid.UUID, ttl time.Duration) (bool, grid.UUID, error)
	// Unlock releases key if owner holds it.
	Unlock(ctx context.Context, key string, owner grid.UUID) error
	// IsLocked reports whether owner holds key.
	IsLocked(ctx context.Context, key string, owner grid.UUID) (bool, error)
}

type lockItem struct {
	owner      grid.UUID
	expiration time.Time
}

func (i lockItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

type inMemoryLocker struct {
	mu    sync.Mutex
	items map[string]lockItem
}

// NewInMemoryLocker returns a process-local Locker.
func NewInMemoryLocker() Locker {
	return &inMemoryLocker{items: make(map[string]lockItem)}
}

func (l *inMemoryLocker) Lock(ctx context.Context, key string, owner grid.UUID, ttl time.Duration) (bool, grid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return false, grid.NilUUID, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if it, ok := l.items[key]; ok && !it.expired(now) && it.owner != owner {
		return false, it.owner, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	l.items[key] = lockItem{owner: owner, expiration: exp}
	return true, grid.NilUUID, nil
}

func (l *inMemoryLocker) Unlock(ctx context.Context, key string, owner grid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if it, ok := l.items[key]; ok && it.owner == owner {
		delete(l.items, key)
	}
	return nil
}

func (l *inMemoryLocker) IsLocked(ctx context.Context, key string, owner grid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.items[key]
	if !ok || it.expired(time.Now()) {
		return false, nil
	}
	return it.owner == owner, nil
}
