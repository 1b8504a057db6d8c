// Package cache provides a Redis-backed cache for search results with
// singleflight collapsing of concurrent identical queries. Any write to an
// index invalidates that index's cached results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/blackroad/searchcore/internal/engine"
	"github.com/blackroad/searchcore/pkg/config"
	pkgredis "github.com/blackroad/searchcore/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// QueryCache caches search results keyed by index uid and the full query
// shape (query, filters, facets, sort, limit, offset).
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache over the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for the query, if present.
func (c *QueryCache) Get(ctx context.Context, uid string, p engine.SearchParams) (*engine.Result, bool) {
	key := c.buildKey(uid, p)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var result engine.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "index", uid, "query", p.Query)
	return &result, true
}

// Set stores a result under the query's cache key.
func (c *QueryCache) Set(ctx context.Context, uid string, p engine.SearchParams, result *engine.Result) {
	key := c.buildKey(uid, p)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and caches it,
// collapsing concurrent identical queries to a single computation. The
// second return reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	uid string,
	p engine.SearchParams,
	computeFn func() (*engine.Result, error),
) (*engine.Result, bool, error) {
	if result, ok := c.Get(ctx, uid, p); ok {
		return result, true, nil
	}
	key := c.buildKey(uid, p)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, uid, p); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, uid, p, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.Result), false, nil
}

// Invalidate drops every cached result of the given index.
func (c *QueryCache) Invalidate(ctx context.Context, uid string) error {
	pattern := keyPrefix + uid + ":*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache for %q: %w", uid, err)
	}
	c.logger.Info("cache invalidated", "index", uid, "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(uid string, p engine.SearchParams) string {
	filters, _ := json.Marshal(p.Filters)
	facets := append([]string(nil), p.Facets...)
	sort.Strings(facets)
	raw := strings.Join([]string{
		strings.ToLower(p.Query),
		string(filters),
		strings.Join(facets, ","),
		strings.Join(p.Sort, ","),
		fmt.Sprintf("limit=%d:offset=%d", p.Limit, p.Offset),
	}, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, uid, hash[:16])
}
