package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/grid"
)

// Redis configurable options.
type Options struct {
	// Redis server(cluster) address.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
	// URL, when set, is parsed and overrides Address, Password and DB.
	URL string
}

// Connection contains Redis client connection object and the Options used to connect.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

// OptionsFromConfig converts the node's Redis configuration.
func OptionsFromConfig(c grid.RedisCacheConfig) Options {
	return Options{
		Address:  c.Address,
		Password: c.Password,
		DB:       c.DB,
		URL:      c.URL,
	}
}

// OpenConnection creates a client for options. Each call returns a new
// connection owned by the caller; no network round trip happens until the
// first command, use Ping to verify reachability.
func OpenConnection(options Options) (*Connection, error) {
	ro := &redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
	}
	if options.URL != "" {
		parsed, err := redis.ParseURL(options.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if options.TLSConfig != nil {
			parsed.TLSConfig = options.TLSConfig
		}
		ro = parsed
	}
	return &Connection{
		Client:  redis.NewClient(ro),
		Options: options,
	}, nil
}

// Ping tests connectivity for redis (PONG should be returned).
func (c *Connection) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("redis connection is not open")
	}
	return c.Client.Ping(ctx).Err()
}

// Close the connection if open.
func (c *Connection) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	err := c.Client.Close()
	c.Client = nil
	return err
}
