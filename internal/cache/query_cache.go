package cache

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"MQueryAPI/internal/logger"
	"MQueryAPI/internal/qparser"

	"github.com/cespare/xxhash/v2"
)

const (
	queryCacheTTL       = 24 * time.Hour
	queryCacheSweepFreq = 10 * time.Minute
)

// QueryKey identifies a compile input: the ordered raw parameters plus an
// optional structured filter.
type QueryKey struct {
	sum   uint64
	canon string
}

func NewQueryKey(params qparser.Params, filter map[string]any) (QueryKey, error) {
	pairs := make([]any, 0, params.Len()+1)
	for _, k := range params.Keys() {
		pairs = append(pairs, []any{k, params.Get(k)})
	}
	if filter != nil {
		pairs = append(pairs, filter)
	} else {
		pairs = append(pairs, nil)
	}

	data, err := canonicalJSON(pairs)
	if err != nil {
		return QueryKey{}, err
	}
	return QueryKey{sum: xxhash.Sum64(data), canon: string(data)}, nil
}

func (k QueryKey) String() string { return fmt.Sprintf("%016x", k.sum) }

type queryCacheEntry struct {
	canon     string
	query     *qparser.Query
	size      int64
	lastUsed  time.Time
	createdAt time.Time
}

// QueryCache keeps compiled, not yet expanded queries. Cached queries are
// shared between requests and must not be modified.
type QueryCache struct {
	mu         sync.Mutex
	items      map[uint64]*queryCacheEntry
	lastSweep  time.Time
	totalBytes int64
	maxBytes   int64
}

// NewQueryCache creates a cache bounded to maxBytes; zero or less means unbounded.
func NewQueryCache(maxBytes int64) *QueryCache {
	return &QueryCache{
		items:    make(map[uint64]*queryCacheEntry),
		maxBytes: maxBytes,
	}
}

func (c *QueryCache) Get(key QueryKey, now time.Time) (*qparser.Query, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweepLocked(now)
	entry, ok := c.items[key.sum]
	if !ok || entry.canon != key.canon {
		return nil, false
	}
	if now.Sub(entry.lastUsed) > queryCacheTTL {
		c.deleteLocked(key.sum)
		return nil, false
	}
	entry.lastUsed = now
	return entry.query, true
}

func (c *QueryCache) Set(key QueryKey, q *qparser.Query, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweepLocked(now)

	sizeBytes := estimateQueryBytes(key, q)
	if c.maxBytes > 0 && sizeBytes > c.maxBytes {
		logger.Warn("query_cache_item_too_large", map[string]any{
			"item_bytes": sizeBytes,
			"max_bytes":  c.maxBytes,
		})
		return
	}

	if _, ok := c.items[key.sum]; ok {
		c.deleteLocked(key.sum)
	}
	if c.maxBytes > 0 && c.totalBytes+sizeBytes > c.maxBytes {
		logger.Warn("query_cache_memory_limit_exceeded", map[string]any{
			"item_bytes":  sizeBytes,
			"total_bytes": c.totalBytes,
			"max_bytes":   c.maxBytes,
		})
		logMemoryPressure()
		return
	}

	c.items[key.sum] = &queryCacheEntry{
		canon:     key.canon,
		query:     q,
		size:      sizeBytes,
		lastUsed:  now,
		createdAt: now,
	}
	c.totalBytes += sizeBytes
}

// GetOrCompile returns the cached query for key or compiles and stores it.
// Failed compiles are not cached.
func (c *QueryCache) GetOrCompile(key QueryKey, compile func() (*qparser.Query, error)) (*qparser.Query, bool, error) {
	now := time.Now()
	if q, ok := c.Get(key, now); ok {
		return q, true, nil
	}
	q, err := compile()
	if err != nil {
		return nil, false, err
	}
	c.Set(key, q, now)
	return q, false, nil
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Bytes returns the estimated size of the cached queries.
func (c *QueryCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

func (c *QueryCache) deleteLocked(sum uint64) {
	if entry, ok := c.items[sum]; ok {
		c.totalBytes -= entry.size
		delete(c.items, sum)
	}
}

func (c *QueryCache) maybeSweepLocked(now time.Time) {
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < queryCacheSweepFreq {
		return
	}
	for sum, entry := range c.items {
		if now.Sub(entry.lastUsed) > queryCacheTTL {
			c.deleteLocked(sum)
		}
	}
	c.lastSweep = now
}

func estimateQueryBytes(key QueryKey, q *qparser.Query) int64 {
	size := int64(len(key.canon))
	if data, err := json.Marshal(q); err == nil {
		size += int64(len(data))
	} else {
		size *= 2
	}
	return size
}

func logMemoryPressure() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	logger.Error("query_cache_memory_pressure", map[string]any{
		"alloc_bytes": stats.Alloc,
		"heap_inuse":  stats.HeapInuse,
	})
}
