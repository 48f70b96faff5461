package slotcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
)

// LRU is the in-process tier: bounded by size, entries expire after ttl.
type LRU struct {
	cache *expirable.LRU[string, []availability.Slot]

	mu          sync.Mutex
	generations map[string]uint64
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{
		cache:       expirable.NewLRU[string, []availability.Slot](size, nil, ttl),
		generations: map[string]uint64{},
	}
}

func (c *LRU) Generation(_ context.Context, resourceID string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[resourceID], true
}

func (c *LRU) Get(_ context.Context, key Key) ([]availability.Slot, bool) {
	slots, ok := c.cache.Get(key.String())
	if !ok {
		return nil, false
	}
	return clone(slots), true
}

func (c *LRU) Set(_ context.Context, key Key, slots []availability.Slot) {
	c.cache.Add(key.String(), clone(slots))
}

func (c *LRU) Invalidate(_ context.Context, resourceID string) {
	c.mu.Lock()
	c.generations[resourceID]++
	c.mu.Unlock()

	prefix := resourcePrefix(resourceID)
	for _, k := range c.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Remove(k)
		}
	}
}

func (c *LRU) Len() int {
	return c.cache.Len()
}
