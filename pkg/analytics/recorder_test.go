package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost_KnownModel(t *testing.T) {
	// 1000 input / 500 output tokens at haiku-4.5 pricing.
	got := Cost("claude-haiku-4.5", 1000, 500)
	assert.InDelta(t, 0.0028, got, 0.0001)
}

func TestCost_UnknownModelIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Cost("totally-unheard-of-model", 1000, 500))
}

func TestRewriter_AppliesAndReportsOriginal(t *testing.T) {
	r := NewRewriter([]OverrideRule{{From: "claude-sonnet-4.5", To: "claude-haiku-4.5"}})

	effective, original := r.Apply("claude-sonnet-4.5")
	assert.Equal(t, "claude-haiku-4.5", effective)
	assert.Equal(t, "claude-sonnet-4.5", original)

	effective, original = r.Apply("gpt-4o")
	assert.Equal(t, "gpt-4o", effective)
	assert.Empty(t, original)
}

func TestRecorder_CacheHitThenMiss_MatchesOverrideScenario(t *testing.T) {
	// Mirrors spec's S1: rule claude-sonnet-4.5 -> claude-haiku-4.5, two
	// identical requests. First is a miss (actual_cost == would_be_cost,
	// savings 0); second is a hit (actual_cost 0, savings ~= 0.0028).
	rec := NewRecorder()
	rewriter := NewRewriter([]OverrideRule{{From: "claude-sonnet-4.5", To: "claude-haiku-4.5"}})

	effective, original := rewriter.Apply("claude-sonnet-4.5")
	require.Equal(t, "claude-haiku-4.5", effective)

	miss := ForMiss(effective, original, 1000, 500)
	rec.Record(miss)
	assert.False(t, miss.CacheHit)
	assert.Equal(t, miss.ActualCost, miss.WouldBeCost)
	assert.Equal(t, 0.0, miss.Savings)

	hit := ForHit(effective, original, 1000, 500)
	rec.Record(hit)
	assert.True(t, hit.CacheHit)
	assert.Equal(t, 0.0, hit.ActualCost)
	assert.InDelta(t, 0.0028, hit.Savings, 0.0001)

	snap := rec.Snapshot()["claude-haiku-4.5"]
	assert.Equal(t, int64(2), snap.Requests)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.HitRate(), 0.0001)

	totals := rec.Totals()
	assert.Equal(t, int64(2), totals.Requests)
}
