package cache

import (
	"strings"
	"time"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// AccountCache holds per-account values for a short time.
// Keys are account ids, so the same account seen under different SS58 prefixes shares one entry.
type AccountCache[V any] struct {
	cache Cache[string, V]
}

func NewAccountCache[V any](ttl time.Duration, metricName string) *AccountCache[V] {
	return &AccountCache[V]{cache: NewTTLCache[string, V](ttl, metricName)}
}

func (c *AccountCache[V]) Get(address string) (V, bool) {
	return c.cache.Get(accountKey(address))
}

func (c *AccountCache[V]) Set(address string, value V) {
	c.cache.Set(accountKey(address), value)
}

// Invalidate drops the entry of address so the next Get misses.
func (c *AccountCache[V]) Invalidate(address string) {
	c.cache.Delete(accountKey(address))
}

func accountKey(address string) string {
	pub, _, err := core.DecodeSS58(address)
	if err != nil {
		return strings.TrimSpace(address)
	}
	return pub.Hex()
}
