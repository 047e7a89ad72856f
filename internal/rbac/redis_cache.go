package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisVersionKey = "rbac:version"
	// BumpChannel carries invalidation notices between nodes.
	BumpChannel = "rbac.bump"
)

// RedisCache shares effective grants between nodes. Keys embed a global version
// so InvalidateAll is a single INCR.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs the cache. A non-positive ttl falls back to DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, redisVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

func grantsKey(gen int64, key string) string {
	return fmt.Sprintf("rbac:grants:%d:%s", gen, key)
}

// Get loads grants for key under the current version.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Grant, bool, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, grantsKey(ver, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var grants []Grant
	if err := json.Unmarshal(raw, &grants); err != nil {
		return nil, false, err
	}
	return grants, true, nil
}

// Generation reports the shared version counter.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	return c.version(ctx)
}

// Set stores grants under version gen with the configured TTL. Writes for a
// version that has since been bumped are skipped.
func (c *RedisCache) Set(ctx context.Context, key string, gen int64, grants []Grant) error {
	ver, err := c.version(ctx)
	if err != nil {
		return err
	}
	if ver != gen {
		return nil
	}
	raw, err := json.Marshal(grants)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, grantsKey(gen, key), raw, c.ttl).Err()
}

// InvalidateAll bumps the version and notifies listeners.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	ver, err := c.client.Incr(ctx, redisVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to bump notices and runs onBump for each.
// It returns once the subscription is confirmed; the loop stops with ctx.
func (c *RedisCache) ListenForInvalidation(ctx context.Context, onBump func()) error {
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if onBump != nil {
					onBump()
				}
			}
		}
	}()
	return nil
}

// BroadcastCache keeps grants in a node-local MemoryCache and fans
// invalidations out to every node over BumpChannel.
type BroadcastCache struct {
	local *MemoryCache
	bus   *RedisCache
}

// NewBroadcastCache wraps local with a Redis notification bus.
func NewBroadcastCache(local *MemoryCache, client *redis.Client) *BroadcastCache {
	return &BroadcastCache{local: local, bus: NewRedisCache(client, local.ttl)}
}

// Get reads the local cache.
func (c *BroadcastCache) Get(ctx context.Context, key string) ([]Grant, bool, error) {
	return c.local.Get(ctx, key)
}

// Generation reports the local generation.
func (c *BroadcastCache) Generation(ctx context.Context) (int64, error) {
	return c.local.Generation(ctx)
}

// Set writes the local cache.
func (c *BroadcastCache) Set(ctx context.Context, key string, gen int64, grants []Grant) error {
	return c.local.Set(ctx, key, gen, grants)
}

// InvalidateAll clears the local cache and notifies the other nodes.
func (c *BroadcastCache) InvalidateAll(ctx context.Context) error {
	if err := c.local.InvalidateAll(ctx); err != nil {
		return err
	}
	return c.bus.client.Publish(ctx, BumpChannel, "local").Err()
}

// Listen clears the local cache whenever any node publishes a bump.
func (c *BroadcastCache) Listen(ctx context.Context) error {
	return c.bus.ListenForInvalidation(ctx, func() {
		_ = c.local.InvalidateAll(ctx)
	})
}
