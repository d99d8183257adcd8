package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCacheTTL is how long retrieval results stay cached.
const DefaultCacheTTL = 10 * time.Minute

// Cache stores search results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Document, bool, error)
	Set(ctx context.Context, key string, docs []Document) error
}

var (
	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retrieval_cache_hits_total",
			Help: "Total number of retrieval cache hits",
		},
	)
	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retrieval_cache_misses_total",
			Help: "Total number of retrieval cache misses",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// CacheKey derives a stable key from the search parameters.
func CacheKey(collection string, k int, query string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", collection, k, query)))
	return "retrieval:" + hex.EncodeToString(sum[:])
}

// NewRedisClient connects to redis. addr may be host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

// RedisCache caches results in redis as JSON.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisCache wraps client. A zero ttl uses DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, timeout: 2 * time.Second}
}

// Get returns cached documents. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Document, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, fmt.Errorf("redis not available")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		cacheMissesTotal.Inc()
		return nil, false, nil
	}
	if err != nil {
		cacheMissesTotal.Inc()
		return nil, false, err
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, false, fmt.Errorf("decode cached documents: %w", err)
	}
	cacheHitsTotal.Inc()
	return docs, true, nil
}

// Set stores documents for the configured ttl.
func (c *RedisCache) Set(ctx context.Context, key string, docs []Document) error {
	if c == nil || c.client == nil {
		return nil // No error if Redis is not available
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Ping reports whether redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("redis not available")
	}
	return c.client.Ping(ctx).Err()
}
