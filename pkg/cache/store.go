package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultByteBudget is spec.md §9's default response-cache byte budget.
const DefaultByteBudget = 1 << 30 // 1 GiB

// DefaultTTL is the response cache entry lifetime.
const DefaultTTL = time.Hour

// Entry is the stored value for a cache key: the upstream response plus
// enough bookkeeping to compute cost on a later hit.
type Entry struct {
	Model        string
	Content      string
	InputTokens  int
	OutputTokens int
}

type record struct {
	entry     Entry
	sizeBytes int
	expiresAt time.Time
}

// Metrics is the point-in-time snapshot Store.Metrics returns.
type Metrics struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Store is the response cache: get/insert with TTL and byte-budget LRU
// eviction. Hashicorp's LRU gives us recency ordering and RemoveOldest;
// byte-budget enforcement on top is our own bookkeeping, the same way the
// context LRU (C10) layers a byte budget over recency ordering.
type Store struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, *record]
	ttl        time.Duration
	byteBudget int
	usedBytes  int
	hits       int64
	misses     int64
}

// NewStore constructs a Store with the given byte budget and TTL. A
// capacity-unbounded underlying LRU is used — the byte budget is the real
// limit; capacity only needs to be large enough never to bind first.
func NewStore(byteBudget int, ttl time.Duration) *Store {
	if byteBudget <= 0 {
		byteBudget = DefaultByteBudget
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{byteBudget: byteBudget, ttl: ttl}
	underlying, err := lru.NewWithEvict[string, *record](1<<20, s.onEvict)
	if err != nil {
		// Only NewWithEvict's size<=0 case returns an error; the literal
		// above is always positive.
		panic(err)
	}
	s.entries = underlying
	return s
}

func (s *Store) onEvict(_ string, r *record) {
	s.usedBytes -= r.sizeBytes
}

// Get returns the entry for key, or (zero, false) on miss or expiry.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.entries.Get(key)
	if !ok {
		s.misses++
		return Entry{}, false
	}
	if time.Now().After(r.expiresAt) {
		s.entries.Remove(key)
		s.misses++
		return Entry{}, false
	}
	s.hits++
	return r.entry, true
}

// Insert stores entry under key, evicting least-recently-used entries
// until the new entry fits the byte budget.
func (s *Store) Insert(key string, entry Entry) {
	size := entrySize(entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries.Peek(key); ok {
		s.usedBytes -= old.sizeBytes
		s.entries.Remove(key)
	}

	for s.usedBytes+size > s.byteBudget && s.entries.Len() > 0 {
		s.entries.RemoveOldest()
	}

	s.entries.Add(key, &record{entry: entry, sizeBytes: size, expiresAt: time.Now().Add(s.ttl)})
	s.usedBytes += size
}

// Metrics returns a point-in-time snapshot of hit/miss/entry counters.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{Hits: s.hits, Misses: s.misses, Entries: s.entries.Len()}
}

func entrySize(e Entry) int {
	return len(e.Model) + len(e.Content) + 16 // +16 for the token counts
}
