package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/grid"
)

// unlockScript deletes the lock key only when the caller still owns it.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker acquires explicit locks as Redis keys whose value is the owner's
// worker id.
type Locker struct {
	conn *Connection
}

// NewLocker returns a locker using conn. The connection stays owned by the
// caller.
func NewLocker(conn *Connection) *Locker {
	return &Locker{conn: conn}
}

// Lock acquires key for owner with the given TTL. It returns false and the
// current owner when another worker holds the key. Re-locking a key the
// owner already holds succeeds and extends its TTL.
func (l *Locker) Lock(ctx context.Context, key string, owner grid.UUID, ttl time.Duration) (bool, grid.UUID, error) {
	if l.conn == nil || l.conn.Client == nil {
		return false, grid.NilUUID, fmt.Errorf("redis connection is not open")
	}
	k := formatLockKey(key)
	ok, err := l.conn.Client.SetNX(ctx, k, owner.String(), ttl).Result()
	if err != nil {
		return false, grid.NilUUID, err
	}
	if ok {
		return true, grid.NilUUID, nil
	}

	readItem, err := l.conn.Client.Get(ctx, k).Result()
	if keyNotFound(err) {
		// Expired between the two calls, try once more.
		ok, err = l.conn.Client.SetNX(ctx, k, owner.String(), ttl).Result()
		if err != nil || ok {
			return ok, grid.NilUUID, err
		}
		readItem, err = l.conn.Client.Get(ctx, k).Result()
	}
	if err != nil {
		return false, grid.NilUUID, err
	}
	if readItem == owner.String() {
		if err := l.conn.Client.PExpire(ctx, k, ttl).Err(); err != nil {
			return false, grid.NilUUID, err
		}
		return true, grid.NilUUID, nil
	}
	id, _ := grid.ParseUUID(readItem)
	return false, id, nil
}

// Unlock releases key if owner holds it. Releasing a key held by another
// worker, or an expired one, is a no-op.
func (l *Locker) Unlock(ctx context.Context, key string, owner grid.UUID) error {
	if l.conn == nil || l.conn.Client == nil {
		return fmt.Errorf("redis connection is not open")
	}
	err := unlockScript.Run(ctx, l.conn.Client, []string{formatLockKey(key)}, owner.String()).Err()
	if keyNotFound(err) {
		return nil
	}
	return err
}

// IsLocked reports whether owner currently holds key.
func (l *Locker) IsLocked(ctx context.Context, key string, owner grid.UUID) (bool, error) {
	if l.conn == nil || l.conn.Client == nil {
		return false, fmt.Errorf("redis connection is not open")
	}
	s, err := l.conn.Client.Get(ctx, formatLockKey(key)).Result()
	if keyNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s == owner.String(), nil
}

// formatLockKey prefixes the key with 'L' to form the namespaced Redis key used for locking.
func formatLockKey(k string) string {
	return fmt.Sprintf("L%s", k)
}
