package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "warehouse:cache:version"

// ErrCacheMiss indicates no usable cached entry.
var ErrCacheMiss = errors.New("warehouse: cache miss")

// ReportCache keeps aggregate reports briefly in Redis. Keys embed a version
// counter that every inventory mutation bumps, so a stale report can never
// outlive the write that invalidated it.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache instantiates the cache helper. A nil client yields a cache
// that misses on every read and swallows writes.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

func (c *ReportCache) enabled() bool {
	return c != nil && c.client != nil
}

// version returns the current cache generation, initialising it when missing.
func (c *ReportCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *ReportCache) key(ctx context.Context, ownerID, kind string) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("warehouse:%s:v%d:%s", kind, ver, ownerID), nil
}

// Get loads a cached value into target, or returns ErrCacheMiss.
func (c *ReportCache) Get(ctx context.Context, ownerID, kind string, target any) error {
	if !c.enabled() {
		return ErrCacheMiss
	}
	key, err := c.key(ctx, ownerID, kind)
	if err != nil {
		return err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

// Set stores value under the current cache generation.
func (c *ReportCache) Set(ctx context.Context, ownerID, kind string, value any) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.key(ctx, ownerID, kind)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached report by advancing the generation counter.
func (c *ReportCache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
