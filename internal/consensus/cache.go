package consensus

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

// cacheEntry holds one stored result with its own expiry window.
type cacheEntry struct {
	result    *contract.ConsensusResult
	timestamp time.Time
	ttl       time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) >= e.ttl
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// Cache stores consensus results keyed by prompt content only, so identical
// prompts with different query options share an entry. Expired entries are
// evicted lazily on read and in bulk by Cleanup.
type Cache struct {
	mu        sync.RWMutex
	entries   map[uint64]*cacheEntry
	ttl       time.Duration
	hits      uint64
	misses    uint64
	evictions uint64
}

func NewCache(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 300 * time.Second
	}
	return &Cache{
		entries: make(map[uint64]*cacheEntry),
		ttl:     defaultTTL,
	}
}

// fingerprint hashes the prompt after lower-casing and collapsing whitespace,
// so formatting differences do not split cache entries.
func fingerprint(prompt string) uint64 {
	normalized := strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return h.Sum64()
}

// Get returns a copy of the stored result for the request's prompt, or
// false on miss. An expired entry counts as a miss and is removed on the
// spot.
func (c *Cache) Get(req *contract.ConsensusRequest) (*contract.ConsensusResult, bool) {
	key := fingerprint(req.Prompt)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if entry.expired(time.Now()) {
		delete(c.entries, key)
		c.evictions++
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.result.Clone(), true
}

// Set stores a copy of the result under the request's prompt. A non-positive
// ttl falls back to the cache default.
func (c *Cache) Set(req *contract.ConsensusRequest, result *contract.ConsensusResult, ttl time.Duration) {
	if result == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	key := fingerprint(req.Prompt)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		result:    result.Clone(),
		timestamp: time.Now(),
		ttl:       ttl,
	}
}

// Cleanup sweeps out every expired entry and returns how many were removed.
func (c *Cache) Cleanup() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evictions += uint64(removed)
	return removed
}

// Flush drops every entry regardless of expiry.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*cacheEntry)
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
	}
}

// Run sweeps expired entries on the given interval until the context ends.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}
