package slotcache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
)

// Cache stores computed slots per resource and query window.
// Implementations must be safe for concurrent use and must not fail the caller: errors are misses.
//
// Invalidate advances the resource's generation. Callers read Generation before loading the
// data they compute from and put it in the Key, so a result computed from data that was
// invalidated mid-flight is stored under a generation no later reader asks for.
// Generation reports false when it cannot be read; the caller must then bypass the cache.
type Cache interface {
	Generation(ctx context.Context, resourceID string) (uint64, bool)
	Get(ctx context.Context, key Key) ([]availability.Slot, bool)
	Set(ctx context.Context, key Key, slots []availability.Slot)
	Invalidate(ctx context.Context, resourceID string)
}

type Key struct {
	ResourceID string
	Generation uint64
	Start      time.Time
	End        time.Time
	Duration   time.Duration
}

// String is stable across processes so it can be shared through Redis. Times and the duration
// keep full nanosecond precision: windows that differ below a second tile differently.
func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s|%s|%d", k.ResourceID, k.Generation, instant(k.Start), instant(k.End), int64(k.Duration))
}

// instant renders t as seconds.nanoseconds since the epoch; UnixNano overflows outside 1678-2262.
func instant(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}

func resourcePrefix(resourceID string) string {
	return resourceID + "|"
}

// Tiered reads L1 then L2 and promotes L2 hits into L1. Either tier may be nil.
// With an L2 the shared generation is authoritative, so an invalidation in one process
// also retires the L1 entries of every other process.
type Tiered struct {
	L1 Cache
	L2 Cache
}

func (t Tiered) Generation(ctx context.Context, resourceID string) (uint64, bool) {
	switch {
	case t.L2 != nil:
		return t.L2.Generation(ctx, resourceID)
	case t.L1 != nil:
		return t.L1.Generation(ctx, resourceID)
	default:
		return 0, false
	}
}

func (t Tiered) Get(ctx context.Context, key Key) ([]availability.Slot, bool) {
	if t.L1 != nil {
		if slots, ok := t.L1.Get(ctx, key); ok {
			return slots, true
		}
	}
	if t.L2 != nil {
		if slots, ok := t.L2.Get(ctx, key); ok {
			if t.L1 != nil {
				t.L1.Set(ctx, key, slots)
			}
			return slots, true
		}
	}
	return nil, false
}

func (t Tiered) Set(ctx context.Context, key Key, slots []availability.Slot) {
	if t.L1 != nil {
		t.L1.Set(ctx, key, slots)
	}
	if t.L2 != nil {
		t.L2.Set(ctx, key, slots)
	}
}

func (t Tiered) Invalidate(ctx context.Context, resourceID string) {
	if t.L1 != nil {
		t.L1.Invalidate(ctx, resourceID)
	}
	if t.L2 != nil {
		t.L2.Invalidate(ctx, resourceID)
	}
}

func clone(slots []availability.Slot) []availability.Slot {
	if slots == nil {
		return []availability.Slot{}
	}
	return slices.Clone(slots)
}
