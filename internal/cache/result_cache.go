package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MQueryAPI/internal/logger"

	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "qresult:"

// ResultCache stores query results in redis, keyed by the SQL that produced them.
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultCache returns nil when rdb is nil or ttl is not positive; a nil
// *ResultCache is valid and never caches.
func NewResultCache(rdb *redis.Client, ttl time.Duration) *ResultCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &ResultCache{rdb: rdb, ttl: ttl}
}

// ResultKey derives the redis key for a statement and its arguments.
func ResultKey(sql string, args []any) (string, error) {
	data, err := canonicalJSON(map[string]any{"sql": sql, "args": args})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return resultKeyPrefix + hex.EncodeToString(sum[:]), nil
}

// GetOrLoad returns the cached result for the statement or runs load and
// caches its result. Redis failures degrade to an uncached load.
func GetOrLoad[T any](ctx context.Context, c *ResultCache, sql string, args []any, load func(context.Context) (T, error)) (T, bool, error) {
	if c == nil {
		v, err := load(ctx)
		return v, false, err
	}

	key, err := ResultKey(sql, args)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("result cache key: %w", err)
	}

	cached, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if err := json.Unmarshal(cached, &v); err == nil {
			return v, true, nil
		}
		logger.Warn("result_cache_corrupt", map[string]any{"key": key})
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("result_cache_get_failed", map[string]any{"key": key, "error": err.Error()})
	}

	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v, false, fmt.Errorf("marshal result failed: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("result_cache_set_failed", map[string]any{"key": key, "error": err.Error()})
	}
	return v, false, nil
}

// Flush removes every cached result.
func (c *ResultCache) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, resultKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}
