package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_DeterministicAndSensitiveToEveryField(t *testing.T) {
	base := Key("m", "p", 1.0, 100)
	assert.Equal(t, base, Key("m", "p", 1.0, 100))
	assert.NotEqual(t, base, Key("m2", "p", 1.0, 100))
	assert.NotEqual(t, base, Key("m", "p2", 1.0, 100))
	assert.NotEqual(t, base, Key("m", "p", 1.1, 100))
	assert.NotEqual(t, base, Key("m", "p", 1.0, 101))
}

func TestGetInsert_RoundTrip(t *testing.T) {
	s := NewStore(DefaultByteBudget, time.Hour)
	key := Key("claude-haiku-4.5", "hi", 1.0, 4096)

	_, ok := s.Get(key)
	require.False(t, ok)

	s.Insert(key, Entry{Model: "claude-haiku-4.5", Content: "hello", InputTokens: 1000, OutputTokens: 500})

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)

	m := s.Metrics()
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.Equal(t, 1, m.Entries)
}

func TestInsert_EvictsLRUOnBudgetExceed(t *testing.T) {
	// Budget fits exactly one ~20-byte entry.
	s := NewStore(40, time.Hour)
	s.Insert("k1", Entry{Model: "m", Content: "aaaaaaaaaa"})
	s.Insert("k2", Entry{Model: "m", Content: "bbbbbbbbbb"})

	_, ok := s.Get("k1")
	assert.False(t, ok, "k1 should have been evicted to make room for k2")

	_, ok = s.Get("k2")
	assert.True(t, ok)
}

func TestGet_ExpiresAfterTTL(t *testing.T) {
	s := NewStore(DefaultByteBudget, time.Millisecond)
	s.Insert("k", Entry{Model: "m", Content: "v"})
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestInsert_OverwritesExistingKey(t *testing.T) {
	s := NewStore(DefaultByteBudget, time.Hour)
	s.Insert("k", Entry{Content: "first"})
	s.Insert("k", Entry{Content: "second"})

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", got.Content)
	assert.Equal(t, 1, s.Metrics().Entries)
}
