package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// MemoryRateCache is the single-process rate cache used when Redis is not configured.
type MemoryRateCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryRateCache() *MemoryRateCache {
	return &MemoryRateCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryRateCache) GetRate(ctx context.Context, key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		return decimal.Zero, false
	}
	return entry.rate, true
}

func (c *MemoryRateCache) SetRate(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{rate: rate, expiresAt: c.now().Add(ttl)}
	return nil
}
