package overview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const cachePrefix = "qbportal:overview"

// Cache stores complete bundles in Redis under a per-user version. Bumping
// the version orphans every bundle cached for that user.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "overview-cache",
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 3 },
		}),
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func versionKey(userID string) string {
	return cachePrefix + ":version:" + userID
}

func bundleKey(userID string, version int64) string {
	return fmt.Sprintf("%s:bundle:%s:%d", cachePrefix, userID, version)
}

func (c *Cache) version(ctx context.Context, userID string) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Get loads the cached bundle of userID into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, userID string, dest *Bundle) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		ver, err := c.version(ctx, userID)
		if err != nil {
			return nil, err
		}
		payload, err := c.client.Get(ctx, bundleKey(userID, ver)).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return payload, err
	})
	if err != nil {
		return false, fmt.Errorf("overview: cache get: %w", err)
	}
	payload, _ := out.([]byte)
	if len(payload) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("overview: cache decode: %w", err)
	}
	return true, nil
}

// Set stores bundle for userID under the current version.
func (c *Cache) Set(ctx context.Context, userID string, bundle Bundle) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("overview: cache encode: %w", err)
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		ver, err := c.version(ctx, userID)
		if err != nil {
			return nil, err
		}
		return nil, c.client.Set(ctx, bundleKey(userID, ver), raw, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("overview: cache set: %w", err)
	}
	return nil
}

// Bump invalidates every bundle cached for userID.
func (c *Cache) Bump(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Incr(ctx, versionKey(userID)).Result()
	})
	if err != nil {
		return fmt.Errorf("overview: cache bump: %w", err)
	}
	return nil
}
