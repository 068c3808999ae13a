// Package redis keeps cluster-wide explicit locks in Redis so every node
// sharing the server observes the others' locks.
package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// keyNotFound will detect whether error signifies key not found by Redis.
func keyNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
