package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

// Redis is the shared tier. Each resource keeps a generation counter, which is part of every
// entry key, and an index set of its entry keys so that Invalidate can drop them without SCAN.
// Generation counters carry no TTL: resetting one could resurrect entries written under it.
type Redis struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

type redisSlot struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: "slots", logger: logger}
}

func (c *Redis) entryKey(key Key) string {
	return c.prefix + ":" + key.String()
}

func (c *Redis) indexKey(resourceID string) string {
	return c.prefix + ":idx:" + resourceID
}

func (c *Redis) generationKey(resourceID string) string {
	return c.prefix + ":gen:" + resourceID
}

func (c *Redis) Generation(ctx context.Context, resourceID string) (uint64, bool) {
	gen, err := c.rdb.Get(ctx, c.generationKey(resourceID)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.logger.Warn("slot cache generation read failed", "err", err, "resource_id", resourceID)
		return 0, false
	}
	return gen, true
}

func (c *Redis) Get(ctx context.Context, key Key) ([]availability.Slot, bool) {
	raw, err := c.rdb.Get(ctx, c.entryKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("slot cache read failed", "err", err, "resource_id", key.ResourceID)
		}
		return nil, false
	}

	var stored []redisSlot
	if err := json.Unmarshal(raw, &stored); err != nil {
		c.logger.Warn("slot cache entry corrupt", "err", err, "resource_id", key.ResourceID)
		return nil, false
	}
	slots := make([]availability.Slot, 0, len(stored))
	for _, s := range stored {
		slots = append(slots, availability.Slot{Start: s.Start.UTC(), Duration: s.Duration})
	}
	return slots, true
}

func (c *Redis) Set(ctx context.Context, key Key, slots []availability.Slot) {
	stored := make([]redisSlot, 0, len(slots))
	for _, s := range slots {
		stored = append(stored, redisSlot{Start: s.Start.UTC(), Duration: s.Duration})
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return
	}

	entry := c.entryKey(key)
	index := c.indexKey(key.ResourceID)
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, entry, raw, c.ttl)
		p.SAdd(ctx, index, entry)
		p.Expire(ctx, index, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("slot cache write failed", "err", err, "resource_id", key.ResourceID)
	}
}

// Invalidate bumps the generation first so that concurrent readers stop using the old entries
// even if deleting them fails.
func (c *Redis) Invalidate(ctx context.Context, resourceID string) {
	if err := c.rdb.Incr(ctx, c.generationKey(resourceID)).Err(); err != nil {
		c.logger.Warn("slot cache generation bump failed", "err", err, "resource_id", resourceID)
	}
	index := c.indexKey(resourceID)
	members, err := c.rdb.SMembers(ctx, index).Result()
	if err != nil {
		c.logger.Warn("slot cache invalidate failed", "err", err, "resource_id", resourceID)
		return
	}
	if err := c.rdb.Del(ctx, append(members, index)...).Err(); err != nil {
		c.logger.Warn("slot cache invalidate failed", "err", err, "resource_id", resourceID)
	}
}
