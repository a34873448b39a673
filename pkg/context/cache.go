package context

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCacheByteBudget is the context LRU's global byte budget.
const DefaultCacheByteBudget = 1 << 30 // 1 GiB

// DefaultCacheTTL is the context LRU's entry lifetime.
const DefaultCacheTTL = time.Hour

const cacheKeySep = "\x1f"

func cacheKey(issueID, agentType string) string {
	return issueID + cacheKeySep + agentType
}

type cacheEntry struct {
	context      Context
	sizeBytes    int64
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
}

// lruCache is the (issue_id, agent_type)-keyed context cache: TTL = 1h,
// byte-budget eviction by ascending last_accessed (spec.md §4.8). This is
// hand-rolled rather than wrapping hashicorp/golang-lru because eviction
// order here is least-recently-accessed by wall-clock timestamp, not
// Cache-package recency order, and clear(issueID) needs a prefix scan
// golang-lru has no primitive for.
type lruCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	byteBudget int64
	usedBytes  int64
}

func newLRUCache(byteBudget int64) *lruCache {
	if byteBudget <= 0 {
		byteBudget = DefaultCacheByteBudget
	}
	return &lruCache{entries: make(map[string]*cacheEntry), byteBudget: byteBudget}
}

func (c *lruCache) get(issueID, agentType string) (Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(issueID, agentType)
	e, ok := c.entries[key]
	if !ok {
		return Context{}, false
	}
	if time.Since(e.createdAt) > DefaultCacheTTL {
		c.usedBytes -= e.sizeBytes
		delete(c.entries, key)
		return Context{}, false
	}
	e.lastAccessed = time.Now()
	e.accessCount++
	return e.context, true
}

func (c *lruCache) insert(issueID, agentType string, ctx Context) {
	size := estimatedSize(ctx)
	key := cacheKey(issueID, agentType)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.usedBytes -= old.sizeBytes
		delete(c.entries, key)
	}

	for c.usedBytes+size > c.byteBudget && len(c.entries) > 0 {
		oldestKey := c.oldestKeyLocked()
		c.usedBytes -= c.entries[oldestKey].sizeBytes
		delete(c.entries, oldestKey)
	}

	now := time.Now()
	c.entries[key] = &cacheEntry{context: ctx, sizeBytes: size, createdAt: now, lastAccessed: now}
	c.usedBytes += size
}

func (c *lruCache) oldestKeyLocked() string {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastAccessed.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.lastAccessed
			first = false
		}
	}
	return oldestKey
}

// clear removes every entry whose key begins with "<issueID>\x1f".
func (c *lruCache) clear(issueID string) {
	prefix := issueID + cacheKeySep

	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			toRemove = append(toRemove, k)
		}
	}
	sort.Strings(toRemove) // deterministic removal order, not load-bearing
	for _, k := range toRemove {
		c.usedBytes -= c.entries[k].sizeBytes
		delete(c.entries, k)
	}
}

func estimatedSize(ctx Context) int64 {
	data, err := json.Marshal(ctx)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
