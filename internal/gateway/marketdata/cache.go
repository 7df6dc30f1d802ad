package marketdata

import (
	"sync"
	"time"

	"stratprobe/internal/market"
)

// barDataCache is a per-client map of merged bar-data responses keyed by
// (symbol, timeframe, start, end). Entries never expire on their own; they
// live until Clear or process exit.
type barDataCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	barData   []market.BarData
	fetchedAt time.Time
}

func newBarDataCache() *barDataCache {
	return &barDataCache{entries: make(map[string]cacheEntry)}
}

func (c *barDataCache) get(key string) ([]market.BarData, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.barData, true
}

func (c *barDataCache) put(key string, data []market.BarData) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{barData: data, fetchedAt: time.Now()}
	c.mu.Unlock()
}

func (c *barDataCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
