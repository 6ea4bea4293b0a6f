package cache

import (
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheMetrics = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "explorer_cache",
		Help: "Cache lookups by result",
	},
	[]string{
		"name",
		"result",
	},
)

type Cache[K comparable, V any] struct {
	cache      *cache.Cache[K, V]
	metricName string
	size       int
	ttl        time.Duration
}

// NewLRUCache keeps at most size entries, evicting the least recently used. A positive ttl also
// expires entries like NewTTLCache does.
func NewLRUCache[K comparable, V any](size int, ttl time.Duration, metricName string) Cache[K, V] {
	return Cache[K, V]{
		cache:      cache.New(cache.AsLRU[K, V](lru.WithCapacity(size))),
		metricName: metricName,
		size:       size,
		ttl:        ttl,
	}
}

// NewTTLCache returns an unbounded cache whose entries expire ttl after they were set.
// Expired entries are never returned; they are dropped on the next lookup.
func NewTTLCache[K comparable, V any](ttl time.Duration, metricName string) Cache[K, V] {
	return Cache[K, V]{
		cache:      cache.New[K, V](),
		metricName: metricName,
		ttl:        ttl,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheMetrics.WithLabelValues(c.metricName, "hit").Inc()
		return val, ok
	}
	cacheMetrics.WithLabelValues(c.metricName, "miss").Inc()
	return val, ok
}

func (c *Cache[K, V]) Set(key K, val V, opts ...cache.ItemOption) {
	if c.ttl > 0 && len(opts) == 0 {
		opts = append(opts, cache.WithExpiration(c.ttl))
	}
	c.cache.Set(key, val, opts...)
}

func (c *Cache[K, V]) Delete(key K) {
	c.cache.Delete(key)
}

// Keys returns the keys of the cache. the order is relied on algorithms.
func (c *Cache[K, V]) Keys() []K {
	return c.cache.Keys()
}

var WithExpiration = cache.WithExpiration
